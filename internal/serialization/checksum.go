package serialization

import (
	"crypto/sha256"

	"github.com/pkg/errors"
)

// ComputeChecksum computes the SHA-256 checksum stored at ChecksumOffset: the
// header JSON followed by the data region.
func ComputeChecksum(headerJSON []byte, data ...[]byte) [ChecksumSize]byte {
	h := sha256.New()
	h.Write(headerJSON)
	for _, d := range data {
		h.Write(d)
	}
	var sum [ChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return errors.Wrapf(ErrChecksumMismatch, "stored %x, computed %x", stored[:8], computed[:8])
	}
	return nil
}
