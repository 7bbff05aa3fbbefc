package forms

import (
	"github.com/google/uuid"

	"github.com/vovakirdan/formsync/internal/proto"
)

// Patch accumulates edits to one form so they travel as a single
// update_formulario command.
type Patch struct {
	p proto.FormPatch
}

// NewPatch starts an empty patch.
func NewPatch() *Patch { return &Patch{} }

// SetTitle changes the form title.
func (b *Patch) SetTitle(title string) *Patch {
	b.p.Titulo = &title
	return b
}

// SetDescription changes the form description.
func (b *Patch) SetDescription(description string) *Patch {
	b.p.Descricao = &description
	return b
}

// EditQuestionText changes the text of an existing question.
func (b *Patch) EditQuestionText(id, text string) *Patch {
	b.question(id).Texto = &text
	return b
}

// SetRequired changes whether a question must be answered.
func (b *Patch) SetRequired(id string, required bool) *Patch {
	b.question(id).Obrigatoria = &required
	return b
}

// AddQuestion appends a new question and returns its client-generated id.
func (b *Patch) AddQuestion(text, kind string) string {
	id := uuid.NewString()
	q := proto.QuestionPatch{ID: id, Nova: true, Texto: &text}
	if kind != "" {
		q.Tipo = &kind
	}
	b.p.Perguntas = append(b.p.Perguntas, q)
	return id
}

// RemoveQuestion deletes a question.
func (b *Patch) RemoveQuestion(id string) *Patch {
	b.p.Remover = append(b.p.Remover, id)
	return b
}

// Reorder sets the full question order. Every id gets its new position, so a
// drag produces one command rather than one per moved question.
func (b *Patch) Reorder(ids []string) *Patch {
	order := make([]proto.OrderEntry, 0, len(ids))
	for i, id := range ids {
		order = append(order, proto.OrderEntry{ID: id, Ordem: i})
	}
	b.p.Ordem = order
	return b
}

// Empty reports whether no edit has been recorded.
func (b *Patch) Empty() bool {
	return b.p.Titulo == nil && b.p.Descricao == nil &&
		len(b.p.Perguntas) == 0 && len(b.p.Remover) == 0 && len(b.p.Ordem) == 0
}

// Body returns the accumulated field diff.
func (b *Patch) Body() proto.FormPatch { return b.p }

// Command wraps the patch in its envelope.
func (b *Patch) Command() (proto.Command, error) {
	return proto.NewCommand(proto.CommandUpdateForm, b.p)
}

func (b *Patch) question(id string) *proto.QuestionPatch {
	for i := range b.p.Perguntas {
		if b.p.Perguntas[i].ID == id {
			return &b.p.Perguntas[i]
		}
	}
	b.p.Perguntas = append(b.p.Perguntas, proto.QuestionPatch{ID: id})
	return &b.p.Perguntas[len(b.p.Perguntas)-1]
}
