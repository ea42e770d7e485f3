package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletchat/wchat/chat/app/sdk/validate"
)

func TestUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid", "bill_kennedy1", true},
		{"min length", "abc", true},
		{"max length", strings.Repeat("a", 20), true},
		{"trimmed", "  valid_name  ", true},
		{"empty", "", false},
		{"blank", "   ", false},
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 21), false},
		{"bad charset", "bad name", false},
		{"dash", "bad-name", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Username(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestUsernameMultibyteLength(t *testing.T) {
	// Two runes but four bytes: the length rule must fire, not the
	// charset rule.
	err := validate.Username("ñé")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 3 and 20")

	err = validate.Username("ñéñ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "letters, numbers and underscores")
}

func TestPassword(t *testing.T) {
	p := validate.Profile{PasswordSpecial: true}

	tests := []struct {
		name    string
		input   string
		valid   bool
		message string
	}{
		{"valid", "Abcdef1!", true, ""},
		{"empty", "", false, "required"},
		{"short", "Ab1!", false, "at least 8"},
		{"no lowercase", "ABCDEF1!", false, "lowercase"},
		{"no uppercase", "abcdef1!", false, "uppercase"},
		{"no digit", "Abcdefg!", false, "digit"},
		{"no special", "Abcdefg1", false, "@$!%*?&"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Password(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestPasswordSpecialOptional(t *testing.T) {
	p := validate.Profile{}

	assert.NoError(t, p.Password("Abcdefg1"))
}

func TestEmail(t *testing.T) {
	assert.NoError(t, validate.Email("bill@ardanlabs.com"))
	assert.NoError(t, validate.Email("a.b+c@sub.domain.io"))
	assert.Error(t, validate.Email(""))
	assert.Error(t, validate.Email("not-an-email"))
	assert.Error(t, validate.Email("missing@tld"))
	assert.Error(t, validate.Email("spaces in@local.part"))
}

func TestPhone(t *testing.T) {
	optional := validate.Profile{PhoneOptional: true}
	required := validate.Profile{}

	assert.NoError(t, optional.Phone(""))
	assert.Error(t, required.Phone(""))

	assert.NoError(t, required.Phone("5551234567"))
	assert.NoError(t, required.Phone("(555) 123-4567"))
	assert.Error(t, required.Phone("123"))
	assert.Error(t, required.Phone("55512345678"))
}

func TestDateOfBirth(t *testing.T) {
	optional := validate.Profile{DOBOptional: true}
	required := validate.Profile{}

	assert.NoError(t, optional.DateOfBirth(""))
	assert.Error(t, required.DateOfBirth(""))

	assert.NoError(t, required.DateOfBirth("1990-06-15"))
	assert.Error(t, required.DateOfBirth("not-a-date"))
	assert.Error(t, required.DateOfBirth("2020-01-01"))
	assert.Error(t, required.DateOfBirth("1850-01-01"))
}

func TestWalletAddress(t *testing.T) {
	valid := "0x" + strings.Repeat("a", 40)

	assert.NoError(t, validate.WalletAddress(valid))
	assert.NoError(t, validate.WalletAddress("  "+valid+"  "))
	assert.NoError(t, validate.WalletAddress("0x"+strings.Repeat("A", 40)))
	assert.Error(t, validate.WalletAddress(""))
	assert.Error(t, validate.WalletAddress("0x"+strings.Repeat("a", 39)))
	assert.Error(t, validate.WalletAddress("0x"+strings.Repeat("a", 41)))
	assert.Error(t, validate.WalletAddress(strings.Repeat("a", 42)))
	assert.Error(t, validate.WalletAddress("0x"+strings.Repeat("g", 40)))
}

func TestCheckRegistration(t *testing.T) {
	p := validate.DefaultProfile()

	form := validate.RegistrationForm{
		Username:      "bill_kennedy",
		Password:      "Abcdef1!",
		Email:         "bill@ardanlabs.com",
		WalletAddress: "0x" + strings.Repeat("a", 40),
	}

	assert.Empty(t, p.CheckRegistration(form))

	form.Username = "x"
	form.Email = "nope"

	fields := p.CheckRegistration(form)
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
}
