package forms

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/vovakirdan/formsync/internal/proto"
)

// ErrEmptyPatch is returned when a patch with no edits is sent.
var ErrEmptyPatch = errors.New("empty patch")

// Sender delivers commands to the server.
type Sender interface {
	Send(ctx context.Context, cmd proto.Command) error
}

const titleField = "titulo"

// TextEditor turns text field changes into commands. There is no debouncing:
// every change whose trimmed content differs from the authoritative value, or
// from the last value still in flight, produces its own command. The raw value
// is echoed locally until an authoritative value for the field arrives: either
// the last value sent (confirmed) or a value this editor never sent
// (overwritten by someone else).
type TextEditor struct {
	sender Sender

	mu    sync.Mutex
	edits map[string]*pendingEdit
}

// pendingEdit is the local state of one field between a change and its
// confirmation. base is the authoritative value the first command was built
// on; inflight holds the trimmed values sent since, oldest first.
type pendingEdit struct {
	raw      string
	base     string
	inflight []string
}

func (p *pendingEdit) last() string {
	if len(p.inflight) == 0 {
		return p.base
	}
	return p.inflight[len(p.inflight)-1]
}

// NewTextEditor builds an editor writing through sender.
func NewTextEditor(sender Sender) *TextEditor {
	return &TextEditor{
		sender: sender,
		edits:  make(map[string]*pendingEdit),
	}
}

// ChangeQuestionText records a new value for the text of q. sent is false when
// the trimmed value matched what the server has or what is already in flight.
// q must carry the authoritative text.
func (e *TextEditor) ChangeQuestionText(ctx context.Context, q proto.Question, value string) (sent bool, err error) {
	return e.change(ctx, q.ID, q.Texto, value, func(p *Patch, text string) {
		p.EditQuestionText(q.ID, text)
	})
}

// ChangeTitle records a new value for the title of form, which must be the
// authoritative form.
func (e *TextEditor) ChangeTitle(ctx context.Context, form proto.Form, value string) (sent bool, err error) {
	return e.change(ctx, titleField, form.Titulo, value, func(p *Patch, text string) {
		p.SetTitle(text)
	})
}

func (e *TextEditor) change(ctx context.Context, key, current, value string, apply func(*Patch, string)) (bool, error) {
	trimmed := strings.TrimSpace(value)

	e.mu.Lock()
	edit, ok := e.edits[key]
	if !ok {
		base := strings.TrimSpace(current)
		if trimmed == base {
			e.mu.Unlock()
			return false, nil
		}
		edit = &pendingEdit{base: base}
		e.edits[key] = edit
	}
	prevRaw := edit.raw
	edit.raw = value
	if trimmed == edit.last() {
		e.mu.Unlock()
		return false, nil
	}
	e.mu.Unlock()

	p := NewPatch()
	apply(p, trimmed)
	cmd, err := p.Command()
	if err == nil {
		err = e.sender.Send(ctx, cmd)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.edits[key] != edit {
		// Reconciled away while sending.
		return err == nil, err
	}
	if err != nil {
		if len(edit.inflight) == 0 {
			delete(e.edits, key)
		} else {
			edit.raw = prevRaw
		}
		return false, err
	}
	edit.inflight = append(edit.inflight, trimmed)
	return true, nil
}

// Reconcile folds the authoritative form into the pending edits. An edit ends
// when the server holds the last value sent, when it holds a value this editor
// never sent, or when its question is gone. A server value equal to an earlier
// in-flight value only advances the base.
func (e *TextEditor) Reconcile(form *proto.Form) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if form == nil {
		clear(e.edits)
		return
	}

	known := make(map[string]string, len(form.Perguntas)+1)
	known[titleField] = form.Titulo
	for _, q := range form.Perguntas {
		known[q.ID] = q.Texto
	}

	for key, edit := range e.edits {
		value, ok := known[key]
		if !ok {
			delete(e.edits, key)
			continue
		}
		server := strings.TrimSpace(value)
		if server == edit.base {
			continue
		}
		i := slices.Index(edit.inflight, server)
		if i < 0 || i == len(edit.inflight)-1 {
			delete(e.edits, key)
			continue
		}
		edit.base = server
		edit.inflight = edit.inflight[i+1:]
	}
}

// Overlay returns a copy of form with pending local text applied.
func (e *TextEditor) Overlay(form *proto.Form) *proto.Form {
	if form == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.edits) == 0 {
		return form
	}

	next := *form
	if edit, ok := e.edits[titleField]; ok {
		next.Titulo = edit.raw
	}
	next.Perguntas = make([]proto.Question, len(form.Perguntas))
	for i, q := range form.Perguntas {
		if edit, ok := e.edits[q.ID]; ok {
			q.Texto = edit.raw
		}
		next.Perguntas[i] = q
	}
	return &next
}

// Pending reports whether key still has an unconfirmed local echo.
func (e *TextEditor) Pending(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.edits[key]
	return ok
}
