package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Kind = "RECEITA"
	Expense Kind = "DESPESA"
)

type (
	// Kind discriminates income from expense. The values are the literals
	// used by the remote finance API.
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// TagRef is a tag attached to a transaction. The API sometimes returns
	// only names, so ID may be empty.
	TagRef struct {
		ID   string
		Name string
	}

	// Transaction is a snapshot of a remote transaction record. Amount is
	// kept in its external string form and parsed only when aggregated.
	Transaction struct {
		ID          string
		Amount      string
		Kind        Kind
		Description string
		Date        Date
		Tags        []TagRef
	}

	Tag struct {
		ID         string
		Name       string
		UsageCount int
	}

	User struct {
		ID        string
		Name      string
		Email     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyTagName     = errors.New("empty tag name")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyEmail       = errors.New("empty email")
)

// ParseKind accepts the API literals and their English names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Income), "INCOME":
		return Income, nil
	case string(Expense), "EXPENSE":
		return Expense, nil
	}
	return "", ErrInvalidKind
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Label returns the display name of the kind.
func (k Kind) Label() string {
	switch k {
	case Income:
		return "Receita"
	case Expense:
		return "Despesa"
	}
	return string(k)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads the date part of "2006-01-02", "2006-01-02T15:04:05" or RFC3339.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, errors.New("invalid date: " + s)
}

// ISO returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// TagNames returns the names of the attached tags in order.
func (t Transaction) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, ref := range t.Tags {
		names = append(names, ref.Name)
	}
	return names
}

// Money parses the raw amount.
func (t Transaction) Money() (Money, error) {
	return ParseAmount(t.Amount)
}

// Validate checks a transaction about to be sent to the API.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	m, err := t.Money()
	if err != nil {
		return err
	}
	return m.Validate()
}

func (t Tag) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return ErrEmptyTagName
	}
	if len(name) > 50 {
		return errors.New("tag name too long (max 50 characters)")
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}
