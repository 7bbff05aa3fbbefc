package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User is a principal known to the server. Users are created on first
// authenticated connection from the token claims.
type User struct {
	ID        int64
	Subject   string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Form is a form definition with its questions in display order.
type Form struct {
	ID          string
	Title       string
	Description string
	Questions   []Question
	UpdatedAt   time.Time
}

// Question is one form question.
type Question struct {
	ID       string
	FormID   string
	Text     string
	Kind     string
	Position int
	Required bool
	Options  []string
}

// FormSummary is a form collection entry.
type FormSummary struct {
	ID            string
	Title         string
	Description   string
	QuestionCount int
	ResponseCount int
	UpdatedAt     time.Time
}

// Response is one submitted answer set.
type Response struct {
	ID        string
	FormID    string
	Answers   map[string]string
	CreatedAt time.Time
}

// FormPatch is a field diff applied atomically to a form.
type FormPatch struct {
	Title       *string
	Description *string
	Questions   []QuestionPatch
	Remove      []string
	Order       []QuestionPosition
}

// QuestionPatch edits a question, or creates it when New is set.
type QuestionPatch struct {
	ID       string
	New      bool
	Text     *string
	Kind     *string
	Required *bool
	Options  []string
}

// QuestionPosition places a question.
type QuestionPosition struct {
	ID       string
	Position int
}

// UserStore handles user persistence.
type UserStore interface {
	// UpsertUser returns the user for subject, creating or refreshing it.
	UpsertUser(ctx context.Context, subject, name, email string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

// FormStore handles form persistence.
type FormStore interface {
	// CreateForm creates an empty form.
	CreateForm(ctx context.Context, title, description string) (*Form, error)

	// GetForm retrieves a form with its questions ordered by position.
	GetForm(ctx context.Context, id string) (*Form, error)

	// GetFormSummary retrieves the collection entry of one form.
	GetFormSummary(ctx context.Context, id string) (*FormSummary, error)

	// ListForms lists all forms, most recently created first.
	ListForms(ctx context.Context) ([]*FormSummary, error)

	// ApplyPatch applies patch in one transaction and returns the resulting form.
	ApplyPatch(ctx context.Context, id string, patch FormPatch) (*Form, error)

	// DeleteForm removes a form with its questions and responses.
	DeleteForm(ctx context.Context, id string) error
}

// ResponseStore handles response persistence.
type ResponseStore interface {
	// CreateResponse stores a submission for formID.
	CreateResponse(ctx context.Context, formID string, answers map[string]string) (*Response, error)

	// ListResponses lists responses of a form, newest first.
	ListResponses(ctx context.Context, formID string) ([]*Response, error)

	// DeleteResponse removes one response.
	DeleteResponse(ctx context.Context, formID, id string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	FormStore
	ResponseStore

	// Close closes the underlying database connection.
	Close() error
}
