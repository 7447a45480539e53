package api

import (
	"context"
	"net/http"
	"net/url"

	"fincontrol/internal/core"
)

// UserInput is the payload for creating or updating a user. An empty
// password leaves the current one unchanged on update.
type UserInput struct {
	Name     string
	Email    string
	Password string
}

func (in UserInput) payload() map[string]any {
	u := map[string]string{"name": in.Name, "email": in.Email}
	if in.Password != "" {
		u["password"] = in.Password
	}
	return map[string]any{"user": u}
}

func (c *Client) ListUsers(ctx context.Context, cred Credentials) ([]core.User, error) {
	var env listEnvelope[wireUser]
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/users", cred: &cred, retry: true}, &env)
	if err != nil {
		return nil, err
	}
	users := make([]core.User, 0, len(env.Data))
	for _, w := range env.Data {
		users = append(users, w.toCore())
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, cred Credentials, in UserInput) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/users", cred: &cred, body: in.payload()}, nil)
}

func (c *Client) UpdateUser(ctx context.Context, cred Credentials, id string, in UserInput) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/api/users/" + url.PathEscape(id), cred: &cred, body: in.payload()}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, cred Credentials, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/users/" + url.PathEscape(id), cred: &cred}, nil)
}
