// Package validate implements the login/registration form rules.
package validate

import "regexp"

// Messages returned by Check, in priority order.
const (
	MsgName          = "Name Id not valid"
	MsgEmailPassword = "Email Id and password not valid"
	MsgEmail         = "Email Id not valid"
	MsgPassword      = "Password Id not valid"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 8

// space lists the characters the form treats as whitespace. RE2's \s only
// covers ASCII, so vertical tab and the Unicode space separators are spelled out.
const space = `\s\x0B\p{Zs}\x{2028}\x{2029}\x{FEFF}`

var (
	reEmail = regexp.MustCompile(`^[^` + space + `@]+@[^` + space + `@]+\.[^` + space + `@]+$`)
	reName  = regexp.MustCompile(`^[A-Za-z` + space + `]+$`)
)

// Check returns the first failing rule's message, or "" when the form is valid.
// The name is only checked in sign-up mode (signIn == false).
func Check(email, password, name string, signIn bool) string {
	if !signIn && !Name(name) {
		return MsgName
	}
	emailOK, passOK := Email(email), Password(password)
	switch {
	case !emailOK && !passOK:
		return MsgEmailPassword
	case !emailOK:
		return MsgEmail
	case !passOK:
		return MsgPassword
	}
	return ""
}

// Email reports whether s looks like local@domain.tld.
func Email(s string) bool { return reEmail.MatchString(s) }

// Name reports whether s is non-empty and made of ASCII letters and whitespace.
func Name(s string) bool { return reName.MatchString(s) }

// Password reports whether s has at least MinPasswordLen characters including
// a digit, a lowercase and an uppercase ASCII letter.
func Password(s string) bool {
	var n int
	var digit, lower, upper bool
	for _, r := range s {
		n++
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029':
			// line terminators are never part of a password
			return false
		}
	}
	return n >= MinPasswordLen && digit && lower && upper
}
