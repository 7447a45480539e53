package api

import (
	"context"
	"net/http"
	"net/url"

	"fincontrol/internal/core"
)

// ListTags returns the tags owned by the credential's user, with usage counts.
func (c *Client) ListTags(ctx context.Context, cred Credentials) ([]core.Tag, error) {
	var env listEnvelope[wireTag]
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/tags/user/" + url.PathEscape(cred.UserID),
		cred:   &cred,
		retry:  true,
	}, &env)
	if err != nil {
		return nil, err
	}
	tags := make([]core.Tag, 0, len(env.Data))
	for _, w := range env.Data {
		tags = append(tags, w.toCore())
	}
	return tags, nil
}

func (c *Client) CreateTag(ctx context.Context, cred Credentials, name string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/tags", cred: &cred, body: tagPayload(cred, name)}, nil)
}

func (c *Client) UpdateTag(ctx context.Context, cred Credentials, id, name string) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/api/tags/" + url.PathEscape(id), cred: &cred, body: tagPayload(cred, name)}, nil)
}

func (c *Client) DeleteTag(ctx context.Context, cred Credentials, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/tags/" + url.PathEscape(id), cred: &cred}, nil)
}

func tagPayload(cred Credentials, name string) map[string]any {
	return map[string]any{"name": name, "user_id": idValue(cred.UserID)}
}
