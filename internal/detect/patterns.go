package detect

import (
	"regexp"
	"strings"
)

// Detector is one entry in the static catalogue. Patterns are tried in
// declared order; Validate and Keywords are optional filters applied to
// every candidate match before it is emitted.
type Detector struct {
	Name string
	// Patterns are compiled once at init and tried in order.
	Patterns []*regexp.Regexp
	// Keywords gate the match: at least one must appear, case-insensitively,
	// in the text surrounding the match. Empty means no gate.
	Keywords []string
	// Validate runs before the keyword gate and rejects structurally
	// invalid candidates (e.g. digit runs that fail the Luhn check).
	Validate func(match string) bool
	// Mask renders the stored representation; the raw match never leaves
	// this package.
	Mask func(match string) string
}

// catalogue is the fixed detector table. Order matters: findings are
// emitted detector by detector in this order.
var catalogue = []Detector{
	{
		Name:     "SSN",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		Keywords: []string{"ssn", "social security", "social-security", "ss#", "ss #"},
		Mask:     maskSSN,
	},
	{
		Name:     "CREDIT_CARD",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)},
		Keywords: []string{"card", "credit", "visa", "mastercard", "amex", "discover", "payment"},
		Validate: validCardNumber,
		Mask:     maskCard,
	},
	{
		Name:     "AWS_ACCESS_KEY",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
		Mask:     maskAccessKey,
	},
	{
		Name:     "AWS_SECRET_KEY",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\b[A-Za-z0-9/+=]{40}\b`)},
		Keywords: []string{"secret", "aws_secret", "secret_access_key"},
		Mask:     maskSecret,
	},
	{
		Name:     "EMAIL",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		Mask:     maskEmail,
	},
	{
		Name: "US_PHONE",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
			regexp.MustCompile(`\(\d{3}\)\s?\d{3}-\d{4}`),
			regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`),
			regexp.MustCompile(`\b\d{10}\b`),
			regexp.MustCompile(`\b1-\d{3}-\d{3}-\d{4}\b`),
		},
		Keywords: []string{"phone", "tel", "telephone", "mobile", "cell"},
		Mask:     maskPhone,
	},
}

// stripSeparators removes the spaces and dashes a card or phone number may
// be written with, leaving only the digits.
func stripSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != ' ' && c != '-' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// validCardNumber strips separators and requires 13 to 19 digits passing
// the Luhn checksum.
func validCardNumber(m string) bool {
	digits := stripSeparators(m)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return luhnValid(digits)
}

// luhnValid checks the Luhn checksum over a digit string. Any non-digit
// byte fails the check.
func luhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func maskSSN(m string) string {
	return "***-**-" + lastN(m, 4)
}

func maskCard(m string) string {
	return "****-****-****-" + lastN(stripSeparators(m), 4)
}

func maskAccessKey(string) string {
	return "AKIA" + strings.Repeat("*", 16)
}

func maskSecret(m string) string {
	return strings.Repeat("*", 36) + lastN(m, 4)
}

func maskEmail(m string) string {
	at := strings.IndexByte(m, '@')
	if at < 0 {
		return "***"
	}
	local, dom := m[:at], m[at+1:]
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + dom
}

func maskPhone(m string) string {
	var digits strings.Builder
	for i := 0; i < len(m); i++ {
		if c := m[i]; c >= '0' && c <= '9' {
			digits.WriteByte(c)
		}
	}
	return "***-***-" + lastN(digits.String(), 4)
}
