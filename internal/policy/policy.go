// Package policy implements the password complexity gate checked whenever a
// passphrase is introduced or rotated.
package policy

// Uppercase, Digits, and Special are the fixed character sets counted by
// IsValid. Counts are by rune, not by byte.
var (
	Uppercase = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	Digits    = []rune("0123456789")
	Special   = []rune(`!"#$%&'()*+,-./:;<=>?@[\]^_` + "`" + `{|}~`)
)

// Policy configures the minimum counts a password must satisfy.
type Policy struct {
	MinLength    int
	MinSpecial   int
	MinUppercase int
	MinDigits    int
}

// Default matches spec.md §4.2: 12/3/3/3.
func Default() Policy {
	return Policy{MinLength: 12, MinSpecial: 3, MinUppercase: 3, MinDigits: 3}
}

// IsValid reports whether password satisfies every minimum in p.
func (p Policy) IsValid(password string) bool {
	runes := []rune(password)
	if len(runes) < p.MinLength {
		return false
	}

	var special, upper, digit int
	for _, r := range runes {
		if containsRune(Special, r) {
			special++
		}
		if containsRune(Uppercase, r) {
			upper++
		}
		if containsRune(Digits, r) {
			digit++
		}
	}

	return special >= p.MinSpecial && upper >= p.MinUppercase && digit >= p.MinDigits
}

func containsRune(set []rune, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}
