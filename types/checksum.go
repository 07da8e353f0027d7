package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Checksum identifies a module blob. It is the SHA-256 hash of the bytecode.
type Checksum [ChecksumLen]byte

// ChecksumLen is the length of a checksum in bytes.
const ChecksumLen = 32

// NewChecksum hashes the given bytecode.
func NewChecksum(code []byte) Checksum {
	return sha256.Sum256(code)
}

func (cs Checksum) String() string {
	return hex.EncodeToString(cs[:])
}

// MarshalJSON implements the json.Marshaler interface for Checksum.
// It converts the checksum to a hex-encoded string.
func (cs Checksum) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(cs[:]))
}
