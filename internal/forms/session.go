package forms

import (
	"context"
	"strings"

	"github.com/vovakirdan/formsync/internal/live"
	"github.com/vovakirdan/formsync/internal/proto"
)

// NewFormManager synchronizes the definition of form id.
func NewFormManager(id string, creds live.CredentialProvider, opts ...live.Option) *live.Manager[proto.Form] {
	return live.New[proto.Form](proto.FormResource(id), creds, FormRouter{}, opts...)
}

// NewResponsesManager synchronizes the response stream of form id.
func NewResponsesManager(formID string, creds live.CredentialProvider, opts ...live.Option) *live.Manager[Responses] {
	return live.New[Responses](proto.ResponsesResource(formID), creds, ResponsesRouter{}, opts...)
}

// NewCatalogManager synchronizes the form collection.
func NewCatalogManager(creds live.CredentialProvider, opts ...live.Option) *live.Manager[Catalog] {
	return live.New[Catalog](proto.FormsResource(), creds, CatalogRouter{}, opts...)
}

// FormSession is an editable form: its manager plus local text echo.
type FormSession struct {
	*live.Manager[proto.Form]
	editor *TextEditor
}

// NewFormSession builds a session for form id. Call Start to connect.
func NewFormSession(id string, creds live.CredentialProvider, opts ...live.Option) *FormSession {
	m := NewFormManager(id, creds, opts...)
	return &FormSession{Manager: m, editor: NewTextEditor(m)}
}

// View returns the authoritative form with unconfirmed text edits overlaid.
func (s *FormSession) View() *proto.Form {
	form := s.Snapshot().State
	s.editor.Reconcile(form)
	return s.editor.Overlay(form)
}

// Editor exposes the text editor.
func (s *FormSession) Editor() *TextEditor { return s.editor }

// SetTitle sends a title edit.
func (s *FormSession) SetTitle(ctx context.Context, title string) (bool, error) {
	form := s.Snapshot().State
	if form == nil {
		return false, live.ErrNotConnected
	}
	return s.editor.ChangeTitle(ctx, *form, title)
}

// SetQuestionText sends a question text edit.
func (s *FormSession) SetQuestionText(ctx context.Context, questionID, text string) (bool, error) {
	form := s.Snapshot().State
	if form == nil {
		return false, live.ErrNotConnected
	}
	q := proto.Question{ID: questionID}
	for _, existing := range form.Perguntas {
		if existing.ID == questionID {
			q = existing
			break
		}
	}
	return s.editor.ChangeQuestionText(ctx, q, text)
}

// SetDescription sends a description edit. Descriptions are not echoed
// locally; the view changes when the server rebroadcasts the form.
func (s *FormSession) SetDescription(ctx context.Context, description string) error {
	return s.Apply(ctx, NewPatch().SetDescription(strings.TrimSpace(description)))
}

// Apply sends a structural patch. Local state is not touched; it changes
// when the server rebroadcasts the form.
func (s *FormSession) Apply(ctx context.Context, p *Patch) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	cmd, err := p.Command()
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}
