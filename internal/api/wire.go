package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fincontrol/internal/core"
)

// flexID accepts ids encoded as JSON numbers or strings.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// rawAmount keeps the amount text exactly as sent, whether the API encoded
// it as a string or a number. Parsing happens in core.
type rawAmount string

func (a *rawAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = rawAmount(s)
	default:
		*a = rawAmount(b)
	}
	return nil
}

// idValue sends numeric ids as JSON numbers, anything else as a string.
func idValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

type wireUser struct {
	ID        flexID `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type wireTag struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Count *struct {
		Transactions int `json:"transactions"`
	} `json:"_count"`
}

// wireTagRef is either a bare tag name or a tag object.
type wireTagRef struct {
	ID   flexID
	Name string
}

func (r *wireTagRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.Name)
	}
	var obj struct {
		ID   flexID `json:"id"`
		Name string `json:"name"`
		Tag  *struct {
			ID   flexID `json:"id"`
			Name string `json:"name"`
		} `json:"tag"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID, r.Name = obj.ID, obj.Name
	if obj.Tag != nil {
		r.ID, r.Name = obj.Tag.ID, obj.Tag.Name
	}
	return nil
}

type wireTransaction struct {
	ID          flexID       `json:"id"`
	Value       rawAmount    `json:"value"`
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Date        string       `json:"date"`
	Tags        []wireTagRef `json:"tags"`
}

type authResponse struct {
	User  wireUser `json:"user"`
	Token string   `json:"token"`
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (w wireUser) toCore() core.User {
	return core.User{
		ID:        string(w.ID),
		Name:      w.Name,
		Email:     w.Email,
		CreatedAt: parseTime(w.CreatedAt),
		UpdatedAt: parseTime(w.UpdatedAt),
	}
}

func (w wireTag) toCore() core.Tag {
	t := core.Tag{ID: string(w.ID), Name: w.Name}
	if w.Count != nil {
		t.UsageCount = w.Count.Transactions
	}
	return t
}

// toCore validates the record at the boundary. An unknown kind rejects the
// record; a malformed date becomes the zero date; the amount is passed
// through untouched.
func (w wireTransaction) toCore() (core.Transaction, error) {
	kind, err := core.ParseKind(w.Type)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w: %q", w.ID, err, w.Type)
	}
	date, _ := core.ParseDate(w.Date)
	t := core.Transaction{
		ID:          string(w.ID),
		Amount:      strings.TrimSpace(string(w.Value)),
		Kind:        kind,
		Description: w.Description,
		Date:        date,
	}
	for _, ref := range w.Tags {
		t.Tags = append(t.Tags, core.TagRef{ID: string(ref.ID), Name: ref.Name})
	}
	return t, nil
}

type transactionPayload struct {
	Description string `json:"description"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Date        string `json:"date"`
}

func newTransactionPayload(t core.Transaction) (transactionPayload, error) {
	m, err := t.Money()
	if err != nil {
		return transactionPayload{}, err
	}
	return transactionPayload{
		Description: t.Description,
		Value:       m.String(),
		Type:        string(t.Kind),
		Date:        t.Date.ISO() + "T00:00:00",
	}, nil
}
