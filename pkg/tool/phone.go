package tool

import (
	"fmt"
	"strings"
)

// ErrInvalidMSISDN wraps all phone normalization failures.
type ErrInvalidMSISDN struct {
	Input  string
	Reason string
}

func (e *ErrInvalidMSISDN) Error() string {
	return fmt.Sprintf("invalid msisdn %q: %s", e.Input, e.Reason)
}

// NormalizeMSISDN converts a caller-supplied phone number into the network's
// subscriber-number format: digits only, no leading zeros, prefixed with
// countryCode, exactly countryCode+subscriberLen digits long.
func NormalizeMSISDN(raw, countryCode string, subscriberLen int) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		return "", &ErrInvalidMSISDN{Input: raw, Reason: "no digits"}
	}
	if !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	if want := len(countryCode) + subscriberLen; len(digits) != want {
		return "", &ErrInvalidMSISDN{Input: raw, Reason: fmt.Sprintf("normalized to %d digits, want %d", len(digits), want)}
	}
	return digits, nil
}
