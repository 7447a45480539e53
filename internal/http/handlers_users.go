package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fincontrol/internal/core"
)

type usersPage struct {
	Title string
	User  core.User
	Query string
	Users []core.User
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	query := searchQuery(r)
	users, err := s.users.List(r.Context(), sess.Credentials(), query)
	if err != nil {
		s.handleAPIError(w, r, err, "list_users")
		return
	}
	page := usersPage{Title: "Usuários", User: sess.User, Query: query, Users: users}
	if isHTMX(r) && r.Header.Get("HX-Target") == "user-rows" {
		s.render(w, r, http.StatusOK, "user-rows", page)
		return
	}
	s.render(w, r, http.StatusOK, "users.html", page)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.users.Create(r.Context(), cred, p.UserForm()); err != nil {
		s.handleAPIError(w, r, err, "create_user")
		return
	}
	mutated(w, r, "/users", EventUserChanged, "Usuário criado")
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := parseBody(w, r)
	if p == nil {
		return
	}
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.users.Update(r.Context(), cred, id, p.UserForm()); err != nil {
		s.handleAPIError(w, r, err, "update_user")
		return
	}
	mutated(w, r, "/users", EventUserChanged, "Usuário atualizado")
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.users.Delete(r.Context(), cred, id); err != nil {
		s.handleAPIError(w, r, err, "delete_user")
		return
	}
	mutated(w, r, "/users", EventUserChanged, "Usuário excluído")
}
