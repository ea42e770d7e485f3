// Package validate provides the field level validation rules for the
// registration and login forms.
package validate

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/walletchat/wchat/chat/app/sdk/errs"
)

var (
	usernameRx = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	emailRx    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	addressRx  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	digitsRx   = regexp.MustCompile(`[^0-9]`)
)

const specialSet = "@$!%*?&"

// Profile captures the rule variations that differ between deployments.
// The zero value applies the strictest form of every rule.
type Profile struct {
	PhoneOptional   bool
	DOBOptional     bool
	PasswordSpecial bool
}

// DefaultProfile matches the current deployment: phone and date of birth
// are optional and passwords need a special character.
func DefaultProfile() Profile {
	return Profile{
		PhoneOptional:   true,
		DOBOptional:     true,
		PasswordSpecial: true,
	}
}

// =============================================================================

// Username checks the username field. Rules are applied in a fixed order so
// the message always identifies the first failing rule.
func Username(raw string) error {
	v := strings.TrimSpace(raw)

	switch {
	case v == "":
		return errs.Newf(errs.Validation, "username is required")
	case utf8.RuneCountInString(v) < 3 || utf8.RuneCountInString(v) > 20:
		return errs.Newf(errs.Validation, "username must be between 3 and 20 characters")
	case !usernameRx.MatchString(v):
		return errs.Newf(errs.Validation, "username may only contain letters, numbers and underscores")
	}

	return nil
}

// Password checks the password field applying the profile's special
// character rule. Order: required, length, lowercase, uppercase, digit,
// special.
func (p Profile) Password(raw string) error {
	switch {
	case raw == "":
		return errs.Newf(errs.Validation, "password is required")
	case len(raw) < 8:
		return errs.Newf(errs.Validation, "password must be at least 8 characters")
	case !strings.ContainsFunc(raw, func(r rune) bool { return r >= 'a' && r <= 'z' }):
		return errs.Newf(errs.Validation, "password must contain a lowercase letter")
	case !strings.ContainsFunc(raw, func(r rune) bool { return r >= 'A' && r <= 'Z' }):
		return errs.Newf(errs.Validation, "password must contain an uppercase letter")
	case !strings.ContainsFunc(raw, func(r rune) bool { return r >= '0' && r <= '9' }):
		return errs.Newf(errs.Validation, "password must contain a digit")
	case p.PasswordSpecial && !strings.ContainsAny(raw, specialSet):
		return errs.Newf(errs.Validation, "password must contain one of %s", specialSet)
	}

	return nil
}

// Email checks the email field against a permissive local@domain.tld shape.
func Email(raw string) error {
	v := strings.TrimSpace(raw)

	switch {
	case v == "":
		return errs.Newf(errs.Validation, "email is required")
	case !emailRx.MatchString(v):
		return errs.Newf(errs.Validation, "email is not valid")
	}

	return nil
}

// Phone checks the phone field. When present it must normalize to exactly
// ten digits.
func (p Profile) Phone(raw string) error {
	v := strings.TrimSpace(raw)

	if v == "" {
		if p.PhoneOptional {
			return nil
		}
		return errs.Newf(errs.Validation, "phone is required")
	}

	if len(digitsRx.ReplaceAllString(v, "")) != 10 {
		return errs.Newf(errs.Validation, "phone must contain exactly 10 digits")
	}

	return nil
}

// DateOfBirth checks the dob field. When present it must parse as a date
// representing an age between 13 and 120 years.
func (p Profile) DateOfBirth(raw string) error {
	return p.dateOfBirth(raw, time.Now())
}

func (p Profile) dateOfBirth(raw string, now time.Time) error {
	v := strings.TrimSpace(raw)

	if v == "" {
		if p.DOBOptional {
			return nil
		}
		return errs.Newf(errs.Validation, "date of birth is required")
	}

	dob, err := time.Parse("2006-01-02", v)
	if err != nil {
		return errs.Newf(errs.Validation, "date of birth is not a valid date")
	}

	age := yearsBetween(dob, now)
	switch {
	case age < 13:
		return errs.Newf(errs.Validation, "you must be at least 13 years old")
	case age > 120:
		return errs.Newf(errs.Validation, "date of birth is not plausible")
	}

	return nil
}

// WalletAddress checks the address is a 0x prefixed 40 hex digit string.
func WalletAddress(raw string) error {
	v := strings.TrimSpace(raw)

	switch {
	case v == "":
		return errs.Newf(errs.Validation, "wallet address is required")
	case !addressRx.MatchString(v):
		return errs.Newf(errs.Validation, "wallet address must be 0x followed by 40 hex characters")
	}

	return nil
}

// =============================================================================

// RegistrationForm carries the raw field values of the register screen.
type RegistrationForm struct {
	Username      string
	Password      string
	Email         string
	Phone         string
	DOB           string
	WalletAddress string
}

// CheckRegistration validates a whole registration form, returning a map of
// field name to message for every failing field. An empty map means the
// form is valid.
func (p Profile) CheckRegistration(f RegistrationForm) map[string]string {
	fields := make(map[string]string)

	if err := Username(f.Username); err != nil {
		fields["username"] = err.Error()
	}
	if err := p.Password(f.Password); err != nil {
		fields["password"] = err.Error()
	}
	if err := Email(f.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := p.Phone(f.Phone); err != nil {
		fields["phone"] = err.Error()
	}
	if err := p.DateOfBirth(f.DOB); err != nil {
		fields["dob"] = err.Error()
	}
	if err := WalletAddress(f.WalletAddress); err != nil {
		fields["walletAddress"] = err.Error()
	}

	return fields
}

func yearsBetween(from time.Time, to time.Time) int {
	years := to.Year() - from.Year()
	if to.YearDay() < from.YearDay() {
		years--
	}
	return years
}
