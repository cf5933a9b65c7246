/*
Package hextrie provides a radix-16 (hex path) compressed trie whose
snapshots are committed to a content-addressed store. Every commit
yields a single digest naming the whole key space at that moment, and
any digest ever returned can later be resolved against, no matter how
the live trie has changed since. Records can be stored in anything,
like a map, a directory, LevelDB, BoltDB or S3.

Uses

- State roots for ledgers: commit once per block, look accounts up by
any past root

- Cheap forks: open a live trie from any root and diverge from there

- Diffing and syncing versions by exchanging only the records that
differ


Shape

Keys are sequences of hex symbols. Each node owns a fragment of the
key below its parent, an optional value, and up to 16 children, one
per next symbol. Inserting splits fragments as needed so that a path
never has a node without a value and with fewer than two children,
other than the root. The shape therefore depends only on the keys
present, not on the order they arrived in, and equal contents always
commit to the same root.

Commitment

Commit hashes the live trie bottom-up. A node's record holds its
fragment, its value and its children's digests in slot order; the
record's digest is the blake2b-256 hash of its canonical encoding, and
the record is stored under that digest. Unchanged subtrees hash to the
digests they already had, so consecutive snapshots share everything
but the changed paths and a commit writes only those.

Concurrency

A Trie has a single writer. A Store is safe for concurrent use: records
are immutable once written, so resolving, iterating and diffing any
roots can proceed alongside commits.

Keys from identifiers

The trie only accepts hex paths. Identifiers like account names must be
mapped first, with HashKey for arbitrary identifiers or KeyFromBytes
for fixed-width binary ones.
*/
package hextrie
