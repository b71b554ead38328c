package payment

import "strings"

const (
	countryCode       = "254"
	localNumberLength = 9
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "")

// NormalizePhone converts a Kenyan mobile number into the 2547XXXXXXXX form
// the provider expects. Accepted inputs are 07XXXXXXXX, 7XXXXXXXX,
// +2547XXXXXXXX and 2547XXXXXXXX, with optional spaces or dashes.
func NormalizePhone(raw string) (string, error) {
	v := phoneSeparators.Replace(strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	case strings.HasPrefix(v, "0"):
		v = countryCode + v[1:]
	case strings.HasPrefix(v, countryCode):
	case len(v) == localNumberLength:
		v = countryCode + v
	}

	if len(v) != len(countryCode)+localNumberLength || !strings.HasPrefix(v, countryCode) || !isDigits(v) {
		return "", ErrInvalidPhone
	}
	return v, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
