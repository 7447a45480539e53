package http

import (
	"context"
	"errors"
	"hash/fnv"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/session"
	"fincontrol/internal/validation"
)

type sessionKey struct{}

func withSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// sessionFrom returns the session stored by requireSession.
func sessionFrom(ctx context.Context) session.Session {
	s, _ := ctx.Value(sessionKey{}).(session.Session)
	return s
}

// requireSession sends anonymous visitors back to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Load(r)
		if err != nil {
			if errors.Is(err, session.ErrExpired) {
				s.sessions.End(w, r)
			}
			redirect(w, r, "/")
			return
		}
		ctx := withSession(r.Context(), sess)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.User.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect uses HX-Redirect for HTMX requests so the whole page is replaced
// instead of swapping a full document into a fragment.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// handleAPIError renders err for the current request. An unauthorized API
// answer ends the session.
func (s *Server) handleAPIError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	ctx := r.Context()
	var fieldErrs validation.Errors
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		s.logger.InfoContext(ctx, "API rejected session token, logging out",
			log.FieldOperation, operation)
		s.sessions.End(w, r)
		redirect(w, r, "/")
	case errors.As(err, &fieldErrs):
		writeFieldErrors(w, fieldErrs)
	case errors.Is(err, validation.ErrValidationFailed):
		UnprocessableEntityError("Dados inválidos").Write(w)
	case errors.Is(err, api.ErrNotFound):
		NotFoundError("Registro não encontrado").Write(w)
	case errors.Is(err, context.Canceled):
		w.WriteHeader(499)
	default:
		s.logger.ErrorContext(ctx, "API request failed",
			log.FieldOperation, operation,
			log.FieldError, err)
		ErrorResponse(http.StatusBadGateway, "Não foi possível falar com o servidor. Tente novamente.").
			TriggerErrorNotification("Falha ao comunicar com o servidor").
			Write(w)
	}
}

func writeFieldErrors(w http.ResponseWriter, errs validation.Errors) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString(`<ul class="error">`)
	for _, f := range fields {
		b.WriteString(`<li data-field="` + template.HTMLEscapeString(f) + `">`)
		b.WriteString(template.HTMLEscapeString(errs[f]))
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
	NewHTMXResponse().
		Status(http.StatusUnprocessableEntity).
		BodyHTML(b.String()).
		Write(w)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var b strings.Builder
	if err := s.templates.ExecuteTemplate(&b, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(b.String()).Write(w)
}

// mutated answers a successful change: HTMX callers get events so lists and
// dashboard cards refresh themselves, plain form posts are sent back to the list.
func mutated(w http.ResponseWriter, r *http.Request, back, event, message string) {
	if !isHTMX(r) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		Trigger(event, struct{}{}).
		TriggerDashboardRefresh().
		TriggerFormReset().
		TriggerSuccessNotification(message).
		Write(w)
}

var tagPalette = []string{
	"#2563eb", "#16a34a", "#dc2626", "#d97706",
	"#7c3aed", "#db2777", "#0891b2", "#65a30d",
}

// tagColor derives a stable badge colour from the tag id.
func tagColor(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return tagPalette[h.Sum32()%uint32(len(tagPalette))]
}

// amountBRL formats a raw API amount, falling back to the raw text when it
// cannot be parsed.
func amountBRL(raw string) string {
	m, err := core.ParseAmount(raw)
	if err != nil {
		return raw
	}
	return m.BRL()
}

func balanceClass(m core.Money) string {
	if m.Cents < 0 {
		return "negative"
	}
	return "positive"
}

func hasTag(t core.Transaction, tagID string) bool {
	for _, ref := range t.Tags {
		if ref.ID == tagID {
			return true
		}
	}
	return false
}

var templateFuncs = template.FuncMap{
	"brl":          func(m core.Money) string { return m.BRL() },
	"amountBRL":    amountBRL,
	"tagColor":     tagColor,
	"balanceClass": balanceClass,
	"hasTag":       hasTag,
	"kindLabel":    func(k core.Kind) string { return k.Label() },
	"isoDate":      func(d core.Date) string { return d.ISO() },
}
