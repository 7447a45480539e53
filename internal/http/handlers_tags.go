package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fincontrol/internal/core"
	"fincontrol/internal/validation"
)

type tagsPage struct {
	Title string
	User  core.User
	Query string
	Tags  []core.Tag
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	query := searchQuery(r)
	tags, err := s.tags.List(r.Context(), sess.Credentials(), query)
	if err != nil {
		s.handleAPIError(w, r, err, "list_tags")
		return
	}
	page := tagsPage{Title: "Tags", User: sess.User, Query: query, Tags: tags}
	if isHTMX(r) && r.Header.Get("HX-Target") == "tag-rows" {
		s.render(w, r, http.StatusOK, "tag-rows", page)
		return
	}
	s.render(w, r, http.StatusOK, "tags.html", page)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.tags.Create(r.Context(), cred, p.Get("name")); err != nil {
		s.tagError(w, r, err, "create_tag")
		return
	}
	mutated(w, r, "/tags", EventTagChanged, "Tag criada")
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := parseBody(w, r)
	if p == nil {
		return
	}
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.tags.Update(r.Context(), cred, id, p.Get("name")); err != nil {
		s.tagError(w, r, err, "update_tag")
		return
	}
	mutated(w, r, "/tags", EventTagChanged, "Tag atualizada")
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.tags.Delete(r.Context(), cred, id); err != nil {
		s.handleAPIError(w, r, err, "delete_tag")
		return
	}
	mutated(w, r, "/tags", EventTagChanged, "Tag excluída")
}

func (s *Server) tagError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if errors.Is(err, validation.ErrValidationFailed) {
		UnprocessableEntityError("Nome da tag obrigatório (máximo de 50 caracteres)").Write(w)
		return
	}
	s.handleAPIError(w, r, err, operation)
}
