// Package sheets exports a user's transactions and summary to a Google
// spreadsheet, one sheet per user.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/validation"
)

// Config selects the spreadsheet and the identity used to write it: a
// service account, or an OAuth client plus a token saved by
// fincontrol-sheets-auth.
type Config struct {
	SpreadsheetID string
	SheetPrefix   string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string

	OAuthClientFile string
	OAuthTokenFile  string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
	logger        *log.Logger
	now           func() time.Time
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentExport)
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	auth, err := clientOption(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", cfg.SpreadsheetID)

	prefix := strings.TrimSpace(cfg.SheetPrefix)
	if prefix == "" {
		prefix = "Transactions"
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		prefix:        prefix,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func clientOption(ctx context.Context, cfg Config) (goption.ClientOption, error) {
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" && cfg.OAuthClientFile != "" {
		oc, err := LoadOAuthConfig(cfg.OAuthClientFile)
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(cfg.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		return goption.WithTokenSource(oc.TokenSource(ctx, tok)), nil
	}
	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	return goption.WithCredentialsJSON(creds), nil
}

func credentialsJSON(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// SheetName is the per-user sheet title.
func (e *Exporter) SheetName(userID string) string {
	return e.prefix + " " + userID
}

// ExportTransactions replaces the user's sheet with the given snapshot and
// returns the number of rows written.
func (e *Exporter) ExportTransactions(ctx context.Context, user core.User, txs []core.Transaction, stats core.SummaryStatistics) (int, error) {
	sheet := e.SheetName(user.ID)
	if err := e.ensureSheet(ctx, sheet); err != nil {
		return 0, err
	}

	all := a1(sheet, "A:Z")
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("clear %s: %w", all, err)
	}

	rows := BuildRows(txs, stats, e.now())
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, a1(sheet, "A1"), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("write %s: %w", sheet, err)
	}

	e.logger.InfoContext(ctx, "Transactions exported",
		log.FieldUserID, user.ID,
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(txs),
		"sheet", sheet)
	return len(rows), nil
}

func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	e.logger.InfoContext(ctx, "Created export sheet", "sheet", title)
	return nil
}

// a1 builds a quoted A1 range for a sheet title that may contain spaces.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

var header = []any{"Data", "Descrição", "Tipo", "Valor", "Tags"}

// BuildRows lays out the export: a header, one row per transaction and a
// summary block. Free text is escaped so the sheet never evaluates it as a
// formula. Malformed amounts are written as text, as received.
func BuildRows(txs []core.Transaction, stats core.SummaryStatistics, generatedAt time.Time) [][]any {
	rows := make([][]any, 0, len(txs)+8)
	rows = append(rows, header)
	for _, t := range txs {
		var amount any = validation.SanitizeForFormulaInjection(t.Amount)
		if m, err := t.Money(); err == nil {
			amount = m.Decimal().InexactFloat64()
		}
		rows = append(rows, []any{
			t.Date.ISO(),
			cell(t.Description),
			t.Kind.Label(),
			amount,
			cell(strings.Join(t.TagNames(), ", ")),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Receitas", stats.Income.Decimal().InexactFloat64()},
		[]any{"Despesas", stats.Expense.Decimal().InexactFloat64()},
		[]any{"Saldo", stats.Balance().Decimal().InexactFloat64()},
		[]any{"Transações", stats.TotalTransactions},
		[]any{"Tags", stats.TotalTags},
		[]any{"Gerado em", generatedAt.UTC().Format(time.RFC3339)},
	)
	return rows
}

func cell(s string) string {
	return validation.SanitizeForFormulaInjection(validation.StripUnprintable(s))
}
