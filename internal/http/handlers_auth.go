package http

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/validation"
)

type authPage struct {
	Title string
	Email string
	Error string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Load(r); err == nil {
		redirect(w, r, "/home")
		return
	}
	s.render(w, r, http.StatusOK, "login.html", authPage{Title: "Entrar"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	email := strings.ToLower(p.Get("email"))
	password := p.Get("password")
	page := authPage{Title: "Entrar", Email: email}

	if email == "" || password == "" {
		page.Error = "Informe e-mail e senha"
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", page)
		return
	}

	user, cred, err := s.auth.Login(r.Context(), email, password)
	switch {
	case errors.Is(err, api.ErrInvalidCredentials):
		s.logger.InfoContext(r.Context(), "Login rejected", log.FieldClientIP, s.detector.ExtractClientIP(r))
		page.Error = "E-mail ou senha inválidos"
		s.render(w, r, http.StatusUnauthorized, "login.html", page)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Login failed", log.FieldError, err)
		page.Error = "Serviço indisponível. Tente novamente."
		s.render(w, r, http.StatusBadGateway, "login.html", page)
		return
	}
	s.startSession(w, r, user, cred, "login.html", page)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", authPage{Title: "Criar conta"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	email := strings.ToLower(p.Get("email"))
	password := p.Get("password")
	page := authPage{Title: "Criar conta", Email: email}

	switch {
	case validation.ValidateEmail(email) != nil:
		page.Error = "E-mail inválido"
	case utf8.RuneCountInString(password) < validation.MinPasswordLength:
		page.Error = "A senha deve ter pelo menos 6 caracteres"
	case password != p.Get("confirm"):
		page.Error = "As senhas não conferem"
	}
	if page.Error != "" {
		s.render(w, r, http.StatusUnprocessableEntity, "register.html", page)
		return
	}

	user, cred, err := s.auth.Register(r.Context(), email, password)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			page.Error = "Não foi possível criar a conta. Verifique se o e-mail já está cadastrado."
			s.render(w, r, http.StatusUnprocessableEntity, "register.html", page)
			return
		}
		s.logger.ErrorContext(r.Context(), "Registration failed", log.FieldError, err)
		page.Error = "Serviço indisponível. Tente novamente."
		s.render(w, r, http.StatusBadGateway, "register.html", page)
		return
	}
	s.startSession(w, r, user, cred, "register.html", page)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user core.User, cred api.Credentials, tmpl string, page authPage) {
	if _, err := s.sessions.Start(r.Context(), w, user, cred); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to store session", log.FieldError, err)
		page.Error = "Não foi possível iniciar a sessão"
		s.render(w, r, http.StatusInternalServerError, tmpl, page)
		return
	}
	redirect(w, r, "/home")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(w, r)
	redirect(w, r, "/")
}
