package manifest

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// runIDLength is the encoded length of the random portion of a run ID.
// 16 random bytes need at most 25 base36 digits.
const runIDLength = 25

// NewRunID returns a fresh globally-unique run identifier of the form
// "run-<base36>". Base36 keeps IDs short and shell-friendly compared to the
// canonical UUID form.
func NewRunID() string {
	u := uuid.New()
	return "run-" + encodeBase36(u[:], runIDLength)
}

// encodeBase36 converts a byte slice to a base36 string of the given length,
// zero-padded on the left.
func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var sb strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		sb.WriteByte(chars[i])
	}

	s := sb.String()
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	if len(s) > length {
		s = s[len(s)-length:]
	}
	return s
}
