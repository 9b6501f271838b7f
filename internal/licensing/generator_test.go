package licensing

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func TestNewCode_Format(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := NewCode()
		assert.Regexp(t, codePattern, code)
	}
}

func TestNewCode_Spread(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		seen[NewCode()] = struct{}{}
	}
	// 36^8 possibilities; a handful of duplicates in 500 draws would mean a broken source.
	assert.Greater(t, len(seen), 495)
}

func TestNewCode_UsesWholeAlphabet(t *testing.T) {
	chars := make(map[rune]bool)
	for i := 0; i < 2000; i++ {
		for _, r := range NewCode() {
			if r != '-' {
				chars[r] = true
			}
		}
	}
	assert.Len(t, chars, len(codeAlphabet))
}
