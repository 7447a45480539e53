package services

import (
	"context"
	"fmt"
	"strings"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/events"
	"fincontrol/internal/log"
	"fincontrol/internal/validation"
)

type TransactionAPI interface {
	ListTransactions(ctx context.Context, cred api.Credentials) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, cred api.Credentials, t core.Transaction) error
	UpdateTransaction(ctx context.Context, cred api.Credentials, id string, t core.Transaction) error
	DeleteTransaction(ctx context.Context, cred api.Credentials, id string) error
	AttachTags(ctx context.Context, cred api.Credentials, txID string, tagIDs []string) error
	DetachTag(ctx context.Context, cred api.Credentials, txID, tagID string) error
}

// TransactionService validates transaction changes before they reach the API
// and keeps dashboards consistent afterwards.
type TransactionService struct {
	api    TransactionAPI
	notify changeNotifier
}

func NewTransactionService(client TransactionAPI, cache Invalidator, pub Publisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TransactionService{
		api:    client,
		notify: changeNotifier{cache: cache, publisher: pub, logger: logger.WithComponent(log.ComponentDashboard)},
	}
}

// List returns the user's transactions newest first, filtered by a
// case-insensitive description match when query is not empty.
func (s *TransactionService) List(ctx context.Context, cred api.Credentials, query string) ([]core.Transaction, error) {
	txs, err := s.api.ListTransactions(ctx, cred)
	if err != nil {
		return nil, err
	}
	txs = FilterTransactions(txs, query)
	SortByDateDesc(txs)
	return txs, nil
}

func (s *TransactionService) Create(ctx context.Context, cred api.Credentials, t core.Transaction) error {
	t, err := cleanTransaction(t)
	if err != nil {
		return err
	}
	if err := s.api.CreateTransaction(ctx, cred, t); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTransaction, log.OpCreate, cred.UserID, "")
	return nil
}

func (s *TransactionService) Update(ctx context.Context, cred api.Credentials, id string, t core.Transaction) error {
	t, err := cleanTransaction(t)
	if err != nil {
		return err
	}
	if err := s.api.UpdateTransaction(ctx, cred, id, t); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTransaction, log.OpUpdate, cred.UserID, id)
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, cred api.Credentials, id string) error {
	if err := s.api.DeleteTransaction(ctx, cred, id); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTransaction, log.OpDelete, cred.UserID, id)
	return nil
}

// AttachTags links tags to a transaction. An empty selection is a no-op.
func (s *TransactionService) AttachTags(ctx context.Context, cred api.Credentials, txID string, tagIDs []string) error {
	ids := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.api.AttachTags(ctx, cred, txID, ids); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTransaction, log.OpAttach, cred.UserID, txID)
	return nil
}

func (s *TransactionService) DetachTag(ctx context.Context, cred api.Credentials, txID, tagID string) error {
	if err := s.api.DetachTag(ctx, cred, txID, tagID); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTransaction, log.OpDetach, cred.UserID, txID)
	return nil
}

func cleanTransaction(t core.Transaction) (core.Transaction, error) {
	t.Description = validation.CleanText(t.Description)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", validation.ErrValidationFailed, err)
	}
	return t, nil
}

// FilterTransactions keeps transactions whose description contains query,
// ignoring case.
func FilterTransactions(txs []core.Transaction, query string) []core.Transaction {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}
