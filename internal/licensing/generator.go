package licensing

import (
	"math/rand"
	"strings"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// CodeGenerator draws a candidate license code. Uniqueness is the issuer's job.
type CodeGenerator func() string

// NewCode returns 8 random characters from A-Z0-9 formatted as XXXX-XXXX.
// Not suitable as a secret.
func NewCode() string {
	var b strings.Builder
	b.Grow(codeLength + 1)
	for i := 0; i < codeLength; i++ {
		if i == codeLength/2 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}
