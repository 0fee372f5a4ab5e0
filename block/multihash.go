package block

import "lukechampine.com/blake3"

// HashCode identifies the hash function used to produce a digest, following
// the multihash convention of a self-describing algorithm code prefix.
type HashCode uint64

// Blake3Code is the only hash function this module produces or accepts.
const Blake3Code HashCode = 0x1e

// MultiHash pairs a digest with the code of the algorithm that produced it.
type MultiHash struct {
	Code   HashCode
	Digest []byte
}

// SumBlake3 hashes data with BLAKE3 and returns its multihash.
func SumBlake3(data []byte) MultiHash {
	sum := blake3.Sum256(data)
	return MultiHash{Code: Blake3Code, Digest: sum[:]}
}
