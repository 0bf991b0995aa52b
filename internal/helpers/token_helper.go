package helpers

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"strconv"
)

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// GenerateSessionToken returns a 128-bit random token in hex. Session
// tokens act as bearer credentials for network access, so they come
// from crypto/rand rather than a seeded PRNG.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
