package auth

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// NormalizeLogin canonicalizes a submitted username or email: NFKC
// normalization followed by case folding, so visually identical logins
// resolve to the same account.
func NormalizeLogin(login string) string {
	return foldCaser.String(norm.NFKC.String(strings.TrimSpace(login)))
}
