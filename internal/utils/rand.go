package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenHex returns a random hex string encoding n random bytes.
func TokenHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
