package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/formsync/internal/store"
	"github.com/vovakirdan/formsync/internal/utils"
)

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// UpsertUser returns the user for subject, creating it or refreshing its display fields.
func (s *SQLiteStore) UpsertUser(ctx context.Context, subject, name, email string) (*store.User, error) {
	query := `
		INSERT INTO users (subject, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET name = excluded.name, email = excluded.email
	`
	if _, err := s.db.ExecContext(ctx, query, subject, name, email, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	var user store.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, name, email, created_at
		FROM users
		WHERE subject = ?
	`, subject).Scan(&user.ID, &user.Subject, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	var user store.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, name, email, created_at
		FROM users
		WHERE id = ?
	`, id).Scan(&user.ID, &user.Subject, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== FormStore implementation ====

// CreateForm creates an empty form.
func (s *SQLiteStore) CreateForm(ctx context.Context, title, description string) (*store.Form, error) {
	id := utils.NewID()
	query := `
		INSERT INTO forms (id, title, description, updated_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, title, description, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert form: %w", err)
	}
	return s.GetForm(ctx, id)
}

// GetForm retrieves a form with its questions ordered by position.
func (s *SQLiteStore) GetForm(ctx context.Context, id string) (*store.Form, error) {
	return getForm(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getForm(ctx context.Context, q queryer, id string) (*store.Form, error) {
	var form store.Form
	err := q.QueryRowContext(ctx, `
		SELECT id, title, description, updated_at
		FROM forms
		WHERE id = ?
	`, id).Scan(&form.ID, &form.Title, &form.Description, &form.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("form %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query form: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, form_id, text, kind, position, required, options
		FROM questions
		WHERE form_id = ?
		ORDER BY position, rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	form.Questions = []store.Question{}
	for rows.Next() {
		var question store.Question
		var options string
		if err := rows.Scan(&question.ID, &question.FormID, &question.Text, &question.Kind,
			&question.Position, &question.Required, &options); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if options != "" {
			if err := json.Unmarshal([]byte(options), &question.Options); err != nil {
				return nil, fmt.Errorf("decode question options: %w", err)
			}
		}
		form.Questions = append(form.Questions, question)
	}

	return &form, rows.Err()
}

const summaryQuery = `
	SELECT f.id, f.title, f.description, f.updated_at,
		(SELECT COUNT(*) FROM questions q WHERE q.form_id = f.id),
		(SELECT COUNT(*) FROM responses r WHERE r.form_id = f.id)
	FROM forms f
`

func scanSummary(scan func(dest ...any) error) (*store.FormSummary, error) {
	var summary store.FormSummary
	if err := scan(&summary.ID, &summary.Title, &summary.Description, &summary.UpdatedAt,
		&summary.QuestionCount, &summary.ResponseCount); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetFormSummary retrieves the collection entry of one form.
func (s *SQLiteStore) GetFormSummary(ctx context.Context, id string) (*store.FormSummary, error) {
	summary, err := scanSummary(s.db.QueryRowContext(ctx, summaryQuery+` WHERE f.id = ?`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("form %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query form summary: %w", err)
	}
	return summary, nil
}

// ListForms lists all forms, most recently created first.
func (s *SQLiteStore) ListForms(ctx context.Context) ([]*store.FormSummary, error) {
	rows, err := s.db.QueryContext(ctx, summaryQuery+` ORDER BY f.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()

	forms := []*store.FormSummary{}
	for rows.Next() {
		summary, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan form summary: %w", err)
		}
		forms = append(forms, summary)
	}
	return forms, rows.Err()
}

// ApplyPatch applies patch in one transaction and returns the resulting form.
// Removals run before edits, and the explicit order runs last.
func (s *SQLiteStore) ApplyPatch(ctx context.Context, id string, patch store.FormPatch) (*store.Form, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check form: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("form %s: %w", id, store.ErrNotFound)
	}

	if patch.Title != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE forms SET title = ? WHERE id = ?`, *patch.Title, id); err != nil {
			return nil, fmt.Errorf("update title: %w", err)
		}
	}
	if patch.Description != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE forms SET description = ? WHERE id = ?`, *patch.Description, id); err != nil {
			return nil, fmt.Errorf("update description: %w", err)
		}
	}

	for _, questionID := range patch.Remove {
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ? AND form_id = ?`, questionID, id); err != nil {
			return nil, fmt.Errorf("remove question: %w", err)
		}
	}

	for _, qp := range patch.Questions {
		if err := applyQuestionPatch(ctx, tx, id, qp); err != nil {
			return nil, err
		}
	}

	for _, pos := range patch.Order {
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET position = ? WHERE id = ? AND form_id = ?`,
			pos.Position, pos.ID, id); err != nil {
			return nil, fmt.Errorf("reorder question: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE forms SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("touch form: %w", err)
	}

	form, err := getForm(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return form, nil
}

func applyQuestionPatch(ctx context.Context, tx *sql.Tx, formID string, qp store.QuestionPatch) error {
	if qp.ID == "" {
		return fmt.Errorf("question patch without id")
	}

	var owner string
	err := tx.QueryRowContext(ctx, `SELECT form_id FROM questions WHERE id = ?`, qp.ID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !qp.New {
			return fmt.Errorf("question %s: %w", qp.ID, store.ErrNotFound)
		}
		return insertQuestion(ctx, tx, formID, qp)
	case err != nil:
		return fmt.Errorf("query question: %w", err)
	case owner != formID:
		return fmt.Errorf("question %s: %w", qp.ID, store.ErrNotFound)
	}

	if qp.Text != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET text = ? WHERE id = ?`, *qp.Text, qp.ID); err != nil {
			return fmt.Errorf("update question text: %w", err)
		}
	}
	if qp.Kind != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET kind = ? WHERE id = ?`, *qp.Kind, qp.ID); err != nil {
			return fmt.Errorf("update question kind: %w", err)
		}
	}
	if qp.Required != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET required = ? WHERE id = ?`, *qp.Required, qp.ID); err != nil {
			return fmt.Errorf("update question required: %w", err)
		}
	}
	if qp.Options != nil {
		options, err := encodeOptions(qp.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET options = ? WHERE id = ?`, options, qp.ID); err != nil {
			return fmt.Errorf("update question options: %w", err)
		}
	}
	return nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, formID string, qp store.QuestionPatch) error {
	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM questions WHERE form_id = ?`,
		formID).Scan(&next); err != nil {
		return fmt.Errorf("next position: %w", err)
	}

	q := store.Question{Kind: "texto", Position: next}
	if qp.Text != nil {
		q.Text = *qp.Text
	}
	if qp.Kind != nil {
		q.Kind = *qp.Kind
	}
	if qp.Required != nil {
		q.Required = *qp.Required
	}
	options, err := encodeOptions(qp.Options)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO questions (id, form_id, text, kind, position, required, options)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, qp.ID, formID, q.Text, q.Kind, q.Position, q.Required, options)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func encodeOptions(options []string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode question options: %w", err)
	}
	return string(data), nil
}

// DeleteForm removes a form with its questions and responses.
func (s *SQLiteStore) DeleteForm(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	return expectAffected(result, "form", id)
}

// ==== ResponseStore implementation ====

// CreateResponse stores a submission for formID.
func (s *SQLiteStore) CreateResponse(ctx context.Context, formID string, answers map[string]string) (*store.Response, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	response := &store.Response{
		ID:        utils.NewID(),
		FormID:    formID,
		Answers:   answers,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO responses (id, form_id, answers, created_at)
		VALUES (?, ?, ?, ?)
	`, response.ID, formID, string(data), response.CreatedAt)
	if err != nil {
		var exists int
		if s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms WHERE id = ?`, formID).Scan(&exists) == nil && exists == 0 {
			return nil, fmt.Errorf("form %s: %w", formID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("insert response: %w", err)
	}
	return response, nil
}

// ListResponses lists responses of a form, newest first.
func (s *SQLiteStore) ListResponses(ctx context.Context, formID string) ([]*store.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, answers, created_at
		FROM responses
		WHERE form_id = ?
		ORDER BY id DESC
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	responses := []*store.Response{}
	for rows.Next() {
		var response store.Response
		var answers string
		if err := rows.Scan(&response.ID, &response.FormID, &answers, &response.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal([]byte(answers), &response.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		responses = append(responses, &response)
	}
	return responses, rows.Err()
}

// DeleteResponse removes one response.
func (s *SQLiteStore) DeleteResponse(ctx context.Context, formID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE id = ? AND form_id = ?`, id, formID)
	if err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	return expectAffected(result, "response", id)
}

func expectAffected(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return nil
}
