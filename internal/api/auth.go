package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fincontrol/internal/core"
)

// Login exchanges e-mail and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (core.User, Credentials, error) {
	var resp authResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"email": email, "password": password},
	}, &resp)
	if err != nil {
		return core.User{}, Credentials{}, loginError(err)
	}
	return authResult(resp)
}

// Register creates an account and signs it in. The display name defaults to
// the local part of the e-mail address.
func (c *Client) Register(ctx context.Context, email, password string) (core.User, Credentials, error) {
	var resp authResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/register",
		body: map[string]any{"user": map[string]string{
			"email":    email,
			"name":     defaultName(email),
			"password": password,
		}},
	}, &resp)
	if err != nil {
		return core.User{}, Credentials{}, err
	}
	return authResult(resp)
}

func authResult(resp authResponse) (core.User, Credentials, error) {
	user := resp.User.toCore()
	cred := Credentials{Token: resp.Token, UserID: user.ID}
	if !cred.Valid() {
		return core.User{}, Credentials{}, fmt.Errorf("auth response: %w", ErrNoCredentials)
	}
	return user, cred, nil
}

func loginError(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return ErrInvalidCredentials
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusForbidden) {
		return ErrInvalidCredentials
	}
	return err
}

func defaultName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
