package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fincontrol/internal/core"
	"fincontrol/internal/log"
)

type transactionsPage struct {
	Title        string
	User         core.User
	Query        string
	Today        string
	Transactions []core.Transaction
	Tags         []core.Tag
	CanExport    bool
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	cred := sess.Credentials()
	query := searchQuery(r)

	txs, err := s.transactions.List(r.Context(), cred, query)
	if err != nil {
		s.handleAPIError(w, r, err, "list_transactions")
		return
	}
	// Rows carry the tag picker, so the partial needs the tags too.
	tags, err := s.tags.List(r.Context(), cred, "")
	if err != nil {
		s.handleAPIError(w, r, err, "list_tags")
		return
	}
	page := transactionsPage{
		Title:        "Transações",
		User:         sess.User,
		Query:        query,
		Today:        time.Now().Format("2006-01-02"),
		Transactions: txs,
		Tags:         tags,
		CanExport:    s.exporter != nil,
	}

	if isHTMX(r) && r.Header.Get("HX-Target") == "transaction-rows" {
		s.render(w, r, http.StatusOK, "transaction-rows", page)
		return
	}
	s.render(w, r, http.StatusOK, "transactions.html", page)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	t, errs := p.TransactionForm().Transaction()
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.transactions.Create(r.Context(), cred, t); err != nil {
		s.handleAPIError(w, r, err, "create_transaction")
		return
	}
	s.logger.InfoContext(r.Context(), "Transaction created",
		log.FieldKind, t.Kind,
		log.FieldRawAmount, t.Amount)
	mutated(w, r, "/transactions", EventTransactionChanged, "Transação registrada")
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := parseBody(w, r)
	if p == nil {
		return
	}
	t, errs := p.TransactionForm().Transaction()
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.transactions.Update(r.Context(), cred, id, t); err != nil {
		s.handleAPIError(w, r, err, "update_transaction")
		return
	}
	mutated(w, r, "/transactions", EventTransactionChanged, "Transação atualizada")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.transactions.Delete(r.Context(), cred, id); err != nil {
		s.handleAPIError(w, r, err, "delete_transaction")
		return
	}
	mutated(w, r, "/transactions", EventTransactionChanged, "Transação excluída")
}

func (s *Server) handleAttachTags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := parseBody(w, r)
	if p == nil {
		return
	}
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.transactions.AttachTags(r.Context(), cred, id, p.GetAll("tag_ids")); err != nil {
		s.handleAPIError(w, r, err, "attach_tags")
		return
	}
	mutated(w, r, "/transactions", EventTransactionChanged, "Tags atualizadas")
}

func (s *Server) handleDetachTag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tagID := chi.URLParam(r, "tagID")
	cred := sessionFrom(r.Context()).Credentials()
	if err := s.transactions.DetachTag(r.Context(), cred, id, tagID); err != nil {
		s.handleAPIError(w, r, err, "detach_tag")
		return
	}
	mutated(w, r, "/transactions", EventTransactionChanged, "Tag removida")
}

// handleExport writes the user's transactions and summary to Google Sheets.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		NotFoundError("Exportação não configurada").Write(w)
		return
	}
	sess := sessionFrom(r.Context())
	d, err := s.dashboard.Snapshot(r.Context(), sess.Credentials())
	if err != nil {
		s.handleAPIError(w, r, err, "export")
		return
	}
	rows, err := s.exporter.ExportTransactions(r.Context(), sess.User, d.Transactions, d.Stats)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Sheets export failed", log.FieldError, err)
		ErrorResponse(http.StatusBadGateway, "Falha ao exportar para o Google Sheets").
			TriggerErrorNotification("Falha ao exportar").
			Write(w)
		return
	}
	s.logger.InfoContext(r.Context(), "Transactions exported", log.FieldCount, rows)
	if !isHTMX(r) {
		http.Redirect(w, r, "/transactions", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerSuccessNotification("Planilha atualizada").
		BodyHTML(`<span class="ok">Exportado</span>`).
		Write(w)
}
