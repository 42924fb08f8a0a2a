package ledger

import (
	"regexp"
	"strings"
)

const maxPhoneLength = 10

// local mobile numbers: 05, 06 or 07 followed by eight digits
var phonePattern = regexp.MustCompile(`^0[567][0-9]{8}`)

// ValidatePhone checks phone against the local mobile-number format.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if len(phone) > maxPhoneLength {
		return &ValidationError{Field: "phone", Reason: "must be at most 10 digits long"}
	}
	if !phonePattern.MatchString(phone) {
		return &ValidationError{Field: "phone", Reason: "must start with 05, 06 or 07 and be 10 digits long, e.g. 0556000000"}
	}
	return nil
}
