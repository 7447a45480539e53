package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/badoux/checkmail"

	"fincontrol/internal/core"
)

var ErrValidationFailed = errors.New("validation failed")

const (
	MaxNameLength        = 100
	MaxEmailLength       = 254
	MinPasswordLength    = 6
	MaxDescriptionLength = 200
	MaxTagNameLength     = 50
)

// Errors collects per-field messages. The zero value is ready to use.
type Errors map[string]string

func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Err returns nil when no field failed.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e Errors) Unwrap() error { return ErrValidationFailed }

// ValidateEmail checks the address syntax only; the remote API owns
// deliverability.
func ValidateEmail(email string) error {
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return fmt.Errorf("%w: e-mail too long", ErrValidationFailed)
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("%w: invalid e-mail", ErrValidationFailed)
	}
	return nil
}

// TransactionForm is the raw form input for a transaction.
type TransactionForm struct {
	Description string
	Amount      string
	Kind        string
	Date        string
}

// Transaction validates f and returns the cleaned transaction, or the
// per-field errors.
func (f TransactionForm) Transaction() (core.Transaction, Errors) {
	errs := Errors{}
	t := core.Transaction{Description: CleanText(f.Description)}

	switch {
	case t.Description == "":
		errs.Add("description", "Descrição obrigatória")
	case utf8.RuneCountInString(t.Description) > MaxDescriptionLength:
		errs.Add("description", fmt.Sprintf("Máximo de %d caracteres", MaxDescriptionLength))
	}

	amount, err := core.ParseAmount(f.Amount)
	if err == nil {
		err = amount.Validate()
	}
	if err != nil {
		errs.Add("amount", "Valor inválido")
	} else {
		t.Amount = amount.String()
	}

	kind, err := core.ParseKind(f.Kind)
	if err != nil {
		errs.Add("kind", "Tipo inválido")
	}
	t.Kind = kind

	date, err := core.ParseDate(f.Date)
	if err != nil || len(strings.TrimSpace(f.Date)) != 10 {
		errs.Add("date", "Data inválida (AAAA-MM-DD)")
	}
	t.Date = date

	if len(errs) > 0 {
		return core.Transaction{}, errs
	}
	return t, nil
}

// TagName validates and cleans a tag name.
func TagName(raw string) (string, error) {
	name := CleanText(raw)
	tag := core.Tag{Name: name}
	if err := tag.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return name, nil
}

// UserForm is the raw form input for a user.
type UserForm struct {
	Name     string
	Email    string
	Password string
}

// Validate cleans the form in place. requirePassword is false for updates,
// where an empty password keeps the current one.
func (f *UserForm) Validate(requirePassword bool) Errors {
	errs := Errors{}
	f.Name = CleanText(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))

	switch {
	case f.Name == "":
		errs.Add("name", "Nome obrigatório")
	case utf8.RuneCountInString(f.Name) > MaxNameLength:
		errs.Add("name", fmt.Sprintf("Máximo de %d caracteres", MaxNameLength))
	}
	if err := ValidateEmail(f.Email); err != nil {
		errs.Add("email", "E-mail inválido")
	}
	if requirePassword || f.Password != "" {
		if utf8.RuneCountInString(f.Password) < MinPasswordLength {
			errs.Add("password", fmt.Sprintf("Mínimo de %d caracteres", MinPasswordLength))
		}
	}
	return errs
}
