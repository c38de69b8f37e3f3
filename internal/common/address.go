package common

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

var ErrInvalidAddress = errors.New("invalid wallet address")

// NormalizeAddress validates a 0x-prefixed 20-byte hex address and returns
// it in EIP-55 checksum form.
func NormalizeAddress(address string) (string, error) {
	a := strings.TrimSpace(address)
	if len(a) != 42 || !(strings.HasPrefix(a, "0x") || strings.HasPrefix(a, "0X")) {
		return "", ErrInvalidAddress
	}
	lower := strings.ToLower(a[2:])
	if _, err := hex.DecodeString(lower); err != nil {
		return "", ErrInvalidAddress
	}
	return checksum(lower), nil
}

// SameAddress compares two addresses ignoring checksum case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func checksum(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	digest := hex.EncodeToString(h.Sum(nil))

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lowerHex); i++ {
		c := lowerHex[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
