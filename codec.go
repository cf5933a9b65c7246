package hextrie

import (
	"errors"
	"fmt"

	"github.com/minio/blake2b-simd"
	"google.golang.org/protobuf/encoding/protowire"
)

// Record wire layout, in this order:
//
//	1: bytes    fragment, one symbol per byte
//	2: bytes    value, only when present
//	3: message  child {1: varint slot, 2: bytes digest}, repeated, ascending slot
const (
	fieldFragment protowire.Number = 1
	fieldValue    protowire.Number = 2
	fieldChild    protowire.Number = 3

	fieldChildSlot   protowire.Number = 1
	fieldChildDigest protowire.Number = 2
)

func marshalRecord(r *Record) ([]byte, error) {
	if err := r.Fragment.validateSymbols(); err != nil {
		return nil, err
	}
	var buf []byte
	buf = protowire.AppendTag(buf, fieldFragment, protowire.BytesType)
	buf = protowire.AppendBytes(buf, r.Fragment)
	if r.HasValue {
		buf = protowire.AppendTag(buf, fieldValue, protowire.BytesType)
		buf = protowire.AppendBytes(buf, r.Value)
	}
	prev := -1
	for _, c := range r.Children {
		if int(c.Slot) <= prev || c.Slot >= Radix {
			return nil, fmt.Errorf("child slot %d out of order", c.Slot)
		}
		prev = int(c.Slot)
		var child []byte
		child = protowire.AppendTag(child, fieldChildSlot, protowire.VarintType)
		child = protowire.AppendVarint(child, uint64(c.Slot))
		child = protowire.AppendTag(child, fieldChildDigest, protowire.BytesType)
		child = protowire.AppendBytes(child, c.Digest[:])
		buf = protowire.AppendTag(buf, fieldChild, protowire.BytesType)
		buf = protowire.AppendBytes(buf, child)
	}
	return buf, nil
}

func (k Key) validateSymbols() error {
	for i, s := range k {
		if s >= Radix {
			return fmt.Errorf("%w: symbol %d at offset %d", ErrInvalidKey, s, i)
		}
	}
	return nil
}

var errTruncated = errors.New("truncated")

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorruptRecord, fmt.Sprintf(format, args...))
}

func consumeField(buf []byte, want protowire.Number, wantType protowire.Type) ([]byte, []byte, bool, error) {
	if len(buf) == 0 {
		return nil, buf, false, nil
	}
	num, typ, n := protowire.ConsumeTag(buf)
	if n < 0 {
		return nil, nil, false, protowire.ParseError(n)
	}
	if num != want {
		return nil, buf, false, nil
	}
	if typ != wantType {
		return nil, nil, false, fmt.Errorf("field %d has wire type %d", num, typ)
	}
	rest := buf[n:]
	switch typ {
	case protowire.BytesType:
		v, m := protowire.ConsumeBytes(rest)
		if m < 0 {
			return nil, nil, false, protowire.ParseError(m)
		}
		return v, rest[m:], true, nil
	case protowire.VarintType:
		_, m := protowire.ConsumeVarint(rest)
		if m < 0 {
			return nil, nil, false, protowire.ParseError(m)
		}
		return rest[:m], rest[m:], true, nil
	}
	return nil, nil, false, fmt.Errorf("unsupported wire type %d", typ)
}

func unmarshalRecord(buf []byte) (*Record, error) {
	var r Record
	fragment, buf, ok, err := consumeField(buf, fieldFragment, protowire.BytesType)
	if err != nil {
		return nil, corrupt("fragment: %v", err)
	}
	if !ok {
		return nil, corrupt("fragment: %v", errTruncated)
	}
	r.Fragment = Key(append([]byte(nil), fragment...))
	if err := r.Fragment.validateSymbols(); err != nil {
		return nil, corrupt("fragment: %v", err)
	}

	value, buf, ok, err := consumeField(buf, fieldValue, protowire.BytesType)
	if err != nil {
		return nil, corrupt("value: %v", err)
	}
	if ok {
		r.Value = append([]byte{}, value...)
		r.HasValue = true
	}

	prev := -1
	for len(buf) > 0 {
		var child []byte
		child, buf, ok, err = consumeField(buf, fieldChild, protowire.BytesType)
		if err != nil {
			return nil, corrupt("child: %v", err)
		}
		if !ok {
			num, _, _ := protowire.ConsumeTag(buf)
			return nil, corrupt("unexpected field %d", num)
		}
		ref, err := unmarshalChildRef(child)
		if err != nil {
			return nil, corrupt("child: %v", err)
		}
		if int(ref.Slot) <= prev {
			return nil, corrupt("child slot %d out of order", ref.Slot)
		}
		prev = int(ref.Slot)
		r.Children = append(r.Children, ref)
	}
	return &r, nil
}

func unmarshalChildRef(buf []byte) (ChildRef, error) {
	var ref ChildRef
	slot, buf, ok, err := consumeField(buf, fieldChildSlot, protowire.VarintType)
	if err != nil {
		return ref, err
	}
	if !ok {
		return ref, fmt.Errorf("slot: %w", errTruncated)
	}
	s, _ := protowire.ConsumeVarint(slot)
	if s >= Radix {
		return ref, fmt.Errorf("slot %d out of range", s)
	}
	ref.Slot = byte(s)
	digest, buf, ok, err := consumeField(buf, fieldChildDigest, protowire.BytesType)
	if err != nil {
		return ref, err
	}
	if !ok {
		return ref, fmt.Errorf("digest: %w", errTruncated)
	}
	if len(digest) != DigestSize {
		return ref, fmt.Errorf("digest is %d bytes", len(digest))
	}
	if len(buf) != 0 {
		return ref, fmt.Errorf("%d trailing bytes", len(buf))
	}
	copy(ref.Digest[:], digest)
	return ref, nil
}

func hashRecord(encoded []byte) Digest {
	return Digest(blake2b.Sum256(encoded))
}
