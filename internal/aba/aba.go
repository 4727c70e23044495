// Package aba implements the checksum arithmetic shared by the batch and
// file layers: ABA routing-number check digits, NACHA entry hashes, and
// file content fingerprints.
package aba

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// weights is the ABA weighted-sum cycle applied across the nine digits of a
// routing number.
var weights = [3]int{3, 7, 1}

// CheckDigit computes the ninth digit for an 8-digit routing prefix using
// the ABA weighted-sum algorithm.
func CheckDigit(routing8 string) (byte, error) {
	if len(routing8) != 8 || !allDigits(routing8) {
		return 0, fmt.Errorf("routing prefix must be 8 digits, got %q", routing8)
	}

	sum := 0
	for i := 0; i < 8; i++ {
		sum += int(routing8[i]-'0') * weights[i%3]
	}

	check := (10 - sum%10) % 10

	return byte('0' + check), nil
}

// ValidateRouting reports whether a full 9-digit routing number satisfies
// the ABA checksum: the weighted sum over all nine digits must be nonzero
// and divisible by 10.
func ValidateRouting(routing9 string) bool {
	if len(routing9) != 9 || !allDigits(routing9) {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(routing9[i]-'0') * weights[i%3]
	}

	return sum != 0 && sum%10 == 0
}

// EntryHash sums the 8-digit receiving-routing components and returns the
// low ten decimal digits, zero-padded. The sum is taken over an unbounded
// integer so large entry sets cannot overflow before the modulo.
func EntryHash(routing8s []string) string {
	sum := new(big.Int)
	tmp := new(big.Int)

	for _, r := range routing8s {
		if _, ok := tmp.SetString(r, 10); !ok {
			continue
		}

		sum.Add(sum, tmp)
	}

	mod := new(big.Int).Exp(big.NewInt(10), big.NewInt(10), nil)
	sum.Mod(sum, mod)

	return fmt.Sprintf("%010s", sum.String())
}

// FileHash returns the SHA-256 fingerprint of a rendered file, hex encoded.
// It doubles as the dedupe key handed to the upload collaborator.
func FileHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
