package api

import (
	"context"
	"net/http"
	"net/url"

	"fincontrol/internal/core"
	"fincontrol/internal/log"
)

// ListTransactions returns the credential user's transactions. Records with
// an unknown kind are dropped and logged; everything else is passed through
// with its amount unparsed.
func (c *Client) ListTransactions(ctx context.Context, cred Credentials) ([]core.Transaction, error) {
	var env listEnvelope[wireTransaction]
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/transactions/user/" + url.PathEscape(cred.UserID),
		cred:   &cred,
		retry:  true,
	}, &env)
	if err != nil {
		return nil, err
	}
	txs := make([]core.Transaction, 0, len(env.Data))
	for _, w := range env.Data {
		t, err := w.toCore()
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping transaction with unknown kind",
				log.FieldUserID, cred.UserID,
				log.FieldTransactionID, string(w.ID),
				log.FieldKind, w.Type,
				log.FieldError, err)
			continue
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func (c *Client) CreateTransaction(ctx context.Context, cred Credentials, t core.Transaction) error {
	p, err := newTransactionPayload(t)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/transactions",
		cred:   &cred,
		body:   map[string]any{"transaction": p},
	}, nil)
}

func (c *Client) UpdateTransaction(ctx context.Context, cred Credentials, id string, t core.Transaction) error {
	p, err := newTransactionPayload(t)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/transactions/" + url.PathEscape(id),
		cred:   &cred,
		body:   map[string]any{"transaction": p},
	}, nil)
}

func (c *Client) DeleteTransaction(ctx context.Context, cred Credentials, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/transactions/" + url.PathEscape(id), cred: &cred}, nil)
}

// AttachTags links tags to a transaction.
func (c *Client) AttachTags(ctx context.Context, cred Credentials, txID string, tagIDs []string) error {
	ids := make([]any, 0, len(tagIDs))
	for _, id := range tagIDs {
		ids = append(ids, idValue(id))
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/transactions/" + url.PathEscape(txID) + "/tags",
		cred:   &cred,
		body:   map[string]any{"tag_ids": ids},
	}, nil)
}

func (c *Client) DetachTag(ctx context.Context, cred Credentials, txID, tagID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/transactions/" + url.PathEscape(txID) + "/tags/" + url.PathEscape(tagID),
		cred:   &cred,
	}, nil)
}
