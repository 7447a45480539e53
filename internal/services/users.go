package services

import (
	"context"
	"strings"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/events"
	"fincontrol/internal/log"
	"fincontrol/internal/validation"
)

type UserAPI interface {
	ListUsers(ctx context.Context, cred api.Credentials) ([]core.User, error)
	CreateUser(ctx context.Context, cred api.Credentials, in api.UserInput) error
	UpdateUser(ctx context.Context, cred api.Credentials, id string, in api.UserInput) error
	DeleteUser(ctx context.Context, cred api.Credentials, id string) error
}

type UserService struct {
	api    UserAPI
	notify changeNotifier
}

func NewUserService(client UserAPI, cache Invalidator, pub Publisher, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &UserService{
		api:    client,
		notify: changeNotifier{cache: cache, publisher: pub, logger: logger.WithComponent(log.ComponentDashboard)},
	}
}

// List returns users whose name or e-mail contains query, ignoring case.
func (s *UserService) List(ctx context.Context, cred api.Credentials, query string) ([]core.User, error) {
	users, err := s.api.ListUsers(ctx, cred)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users, nil
	}
	out := users[:0]
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Create validates the form and creates the user. Field errors come back as
// validation.Errors.
func (s *UserService) Create(ctx context.Context, cred api.Credentials, form validation.UserForm) error {
	if err := form.Validate(true).Err(); err != nil {
		return err
	}
	if err := s.api.CreateUser(ctx, cred, api.UserInput(form)); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindUser, log.OpCreate, cred.UserID, "")
	return nil
}

// Update changes name and e-mail, and the password only when one is given.
func (s *UserService) Update(ctx context.Context, cred api.Credentials, id string, form validation.UserForm) error {
	if err := form.Validate(false).Err(); err != nil {
		return err
	}
	if err := s.api.UpdateUser(ctx, cred, id, api.UserInput(form)); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindUser, log.OpUpdate, cred.UserID, id)
	return nil
}

func (s *UserService) Delete(ctx context.Context, cred api.Credentials, id string) error {
	if err := s.api.DeleteUser(ctx, cred, id); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindUser, log.OpDelete, cred.UserID, id)
	return nil
}
