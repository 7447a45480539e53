package services

import (
	"context"
	"sort"
	"strings"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/events"
	"fincontrol/internal/log"
	"fincontrol/internal/validation"
)

type TagAPI interface {
	ListTags(ctx context.Context, cred api.Credentials) ([]core.Tag, error)
	CreateTag(ctx context.Context, cred api.Credentials, name string) error
	UpdateTag(ctx context.Context, cred api.Credentials, id, name string) error
	DeleteTag(ctx context.Context, cred api.Credentials, id string) error
}

type TagService struct {
	api    TagAPI
	notify changeNotifier
}

func NewTagService(client TagAPI, cache Invalidator, pub Publisher, logger *log.Logger) *TagService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TagService{
		api:    client,
		notify: changeNotifier{cache: cache, publisher: pub, logger: logger.WithComponent(log.ComponentDashboard)},
	}
}

// List returns the user's tags sorted by name, optionally filtered.
func (s *TagService) List(ctx context.Context, cred api.Credentials, query string) ([]core.Tag, error) {
	tags, err := s.api.ListTags(ctx, cred)
	if err != nil {
		return nil, err
	}
	tags = FilterTags(tags, query)
	sort.SliceStable(tags, func(i, j int) bool {
		return strings.ToLower(tags[i].Name) < strings.ToLower(tags[j].Name)
	})
	return tags, nil
}

func (s *TagService) Create(ctx context.Context, cred api.Credentials, name string) error {
	name, err := validation.TagName(name)
	if err != nil {
		return err
	}
	if err := s.api.CreateTag(ctx, cred, name); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTag, log.OpCreate, cred.UserID, "")
	return nil
}

func (s *TagService) Update(ctx context.Context, cred api.Credentials, id, name string) error {
	name, err := validation.TagName(name)
	if err != nil {
		return err
	}
	if err := s.api.UpdateTag(ctx, cred, id, name); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTag, log.OpUpdate, cred.UserID, id)
	return nil
}

func (s *TagService) Delete(ctx context.Context, cred api.Credentials, id string) error {
	if err := s.api.DeleteTag(ctx, cred, id); err != nil {
		return err
	}
	s.notify.changed(ctx, events.KindTag, log.OpDelete, cred.UserID, id)
	return nil
}

// FilterTags keeps tags whose name contains query, ignoring case.
func FilterTags(tags []core.Tag, query string) []core.Tag {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tags
	}
	out := make([]core.Tag, 0, len(tags))
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	return out
}
