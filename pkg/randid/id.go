// Package randid generates short random lowercase alphanumeric IDs.
package randid

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a random ID of the given length drawn from [a-z0-9].
func Generate(length int) string {
	max := big.NewInt(int64(len(alphabet)))

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform source is broken
			panic(err)
		}
		b[i] = alphabet[n.Int64()]
	}

	return string(b)
}
