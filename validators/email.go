// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"net/mail"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrEmailEmpty     = errors.New("no email address provided")
	ErrEmailInvalid   = errors.New("invalid email address provided")
	ErrEmailForbidden = errors.New("only company email domains are allowed")
)

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if _, err := mail.ParseAddress(e); err != nil {
		return ErrEmailInvalid
	}

	return nil
}

// CompanyEmailValidator additionally requires the address to belong to one
// of the configured corporate domains. Sign-in is closed to everyone else.
func CompanyEmailValidator(e string) error {
	if err := EmailValidator(e); err != nil {
		return err
	}

	_, domain, _ := strings.Cut(strings.ToLower(e), "@")
	if !slices.Contains(viper.GetStringSlice("auth.allowed_domains"), domain) {
		return ErrEmailForbidden
	}

	return nil
}
