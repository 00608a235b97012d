package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPhone is returned for a destination that is neither a phone
// number nor an iMessage address.
var ErrInvalidPhone = errors.New("invalid phone number")

var (
	phoneRe = regexp.MustCompile(`^\+?[0-9(][0-9 ().-]{5,}[0-9]$`)
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func ValidatePhoneNumber(s string) error {
	s = strings.TrimSpace(s)
	if phoneRe.MatchString(s) || emailRe.MatchString(s) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPhone, s)
}

// ValidatePhoneNumbers checks every non-blank entry.
func ValidatePhoneNumbers(nums []string) error {
	for _, n := range nums {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if err := ValidatePhoneNumber(n); err != nil {
			return err
		}
	}
	return nil
}
