// Package login prompts for the mailbox password and the task service
// token and stores them in the system keyring.
package login

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/mailtask/internal/credential"
)

// ErrAborted is returned when the user leaves the form without submitting.
var ErrAborted = errors.New("login aborted")

// Values holds what the form collects.
type Values struct {
	Account  string
	Password string
	Token    string
}

// SetFunc stores one secret. credential.Set satisfies it.
type SetFunc func(key, value string) error

// NewForm builds the login form bound to v. A pre-filled account is kept
// as the default.
func NewForm(v *Values) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email Account").
				Description("IMAP login, usually the full address").
				Placeholder("tasks@example.com").
				Value(&v.Account).
				Validate(validateRequired("Email Account")),
			huh.NewInput().
				Title("Email Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&v.Password),
			huh.NewInput().
				Title("Vikunja API Token").
				Description("Token sent as Bearer on every task request").
				EchoMode(huh.EchoModePassword).
				Value(&v.Token),
		),
	)
}

// Run shows the form and saves the submitted secrets with set.
func Run(account string, set SetFunc) error {
	v := Values{Account: account}

	if err := NewForm(&v).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("running login form: %w", err)
	}

	return Save(v, set)
}

// Save stores the non-empty secrets of v. Blank fields leave the keyring
// untouched so a single secret can be rotated on its own.
func Save(v Values, set SetFunc) error {
	if err := validateRequired("Email Account")(v.Account); err != nil {
		return err
	}

	if v.Password != "" {
		key := credential.MailPasswordKey(v.Account)
		if err := set(key, v.Password); err != nil {
			return fmt.Errorf("storing mail password: %w", err)
		}
	}
	if v.Token != "" {
		if err := set(credential.TrackerTokenKey, strings.TrimSpace(v.Token)); err != nil {
			return fmt.Errorf("storing task service token: %w", err)
		}
	}

	return nil
}

// DeleteFunc removes one secret. credential.Delete satisfies it.
type DeleteFunc func(key string) error

// Forget removes the stored mail password of account and the task service
// token. Secrets that were never stored are skipped.
func Forget(account string, del DeleteFunc) error {
	keys := []string{credential.TrackerTokenKey}
	if strings.TrimSpace(account) != "" {
		keys = append([]string{credential.MailPasswordKey(account)}, keys...)
	}

	for _, key := range keys {
		if err := del(key); err != nil && !errors.Is(err, credential.ErrNotFound) {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
