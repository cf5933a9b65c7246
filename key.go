package hextrie

import (
	"bytes"
	"fmt"

	"github.com/minio/blake2b-simd"
)

// Radix is the branching factor of the trie: the number of distinct symbols a
// key is made of.
const Radix = 16

const hexSymbols = "0123456789abcdef"

// A Key is a path through the trie, one symbol (0..15, a hex nibble) per
// element.
type Key []byte

// ParseKey converts hex text, like "12abc", into a Key.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	k := make(Key, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case '0' <= c && c <= '9':
			k[i] = c - '0'
		case 'a' <= c && c <= 'f':
			k[i] = c - 'a' + 10
		case 'A' <= c && c <= 'F':
			k[i] = c - 'A' + 10
		default:
			return nil, fmt.Errorf("%w: %q at offset %d", ErrInvalidKey, c, i)
		}
	}
	return k, nil
}

// MustParseKey is like ParseKey but panics on malformed input.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// KeyFromBytes expands b into two symbols per byte, high nibble first.
func KeyFromBytes(b []byte) Key {
	k := make(Key, len(b)*2)
	for i, c := range b {
		k[2*i] = c >> 4
		k[2*i+1] = c & 0x0f
	}
	return k
}

// HashKey derives a fixed-length key from an arbitrary external identifier,
// like an account name. Identifiers that aren't already hex paths should
// always go through HashKey (or KeyFromBytes) before insertion.
func HashKey(id []byte) Key {
	sum := blake2b.Sum256(id)
	return KeyFromBytes(sum[:])
}

// Validate reports ErrInvalidKey if k is empty or holds a symbol outside the
// alphabet.
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for i, s := range k {
		if s >= Radix {
			return fmt.Errorf("%w: symbol %d at offset %d", ErrInvalidKey, s, i)
		}
	}
	return nil
}

// String renders k as lowercase hex.
func (k Key) String() string {
	b := make([]byte, len(k))
	for i, s := range k {
		if s >= Radix {
			return fmt.Sprintf("Key(%v)", []byte(k))
		}
		b[i] = hexSymbols[s]
	}
	return string(b)
}

// Bytes packs k back into bytes, the inverse of KeyFromBytes. An odd trailing
// symbol occupies the high nibble of the last byte.
func (k Key) Bytes() []byte {
	b := make([]byte, (len(k)+1)/2)
	for i, s := range k {
		if i%2 == 0 {
			b[i/2] = s << 4
		} else {
			b[i/2] |= s & 0x0f
		}
	}
	return b
}

// Equal reports whether k and o are the same path.
func (k Key) Equal(o Key) bool {
	return bytes.Equal(k, o)
}

// Compare orders keys lexicographically by symbol; a prefix sorts first.
func (k Key) Compare(o Key) int {
	return bytes.Compare(k, o)
}

// HasPrefix reports whether p is a prefix of k.
func (k Key) HasPrefix(p Key) bool {
	return bytes.HasPrefix(k, p)
}

func (k Key) clone() Key {
	if k == nil {
		return nil
	}
	return append(Key(nil), k...)
}

func concatKeys(a, b Key) Key {
	out := make(Key, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// commonPrefixLen counts leading symbols a and b share, stopping at the first
// mismatch or the end of either.
func commonPrefixLen(a, b Key) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for ; i < n; i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}
