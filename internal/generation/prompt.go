package generation

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"genstudio/internal/domain"
)

// MaxPromptRunes caps prompt length after normalization.
const MaxPromptRunes = 4000

// NormalizePrompt applies NFKC, collapses whitespace runs and validates the
// result.
func NormalizePrompt(raw string) (string, error) {
	p := strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
	if p == "" {
		return "", domain.ErrInvalidPrompt
	}
	if utf8.RuneCountInString(p) > MaxPromptRunes {
		return "", domain.ErrInvalidPrompt
	}
	return p, nil
}
