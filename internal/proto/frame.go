package proto

import (
	"encoding/json"
	"fmt"
)

// Frame is the envelope for messages pushed by the server over a channel.
// The body travels in either conteudo or dados depending on the resource.
type Frame struct {
	Tipo     string          `json:"tipo"`
	Conteudo json.RawMessage `json:"conteudo,omitempty"`
	Dados    json.RawMessage `json:"dados,omitempty"`
}

// PayloadField names the envelope field a resource uses for frame bodies.
type PayloadField int

const (
	// PayloadConteudo is used by the form channel.
	PayloadConteudo PayloadField = iota
	// PayloadDados is used by the response stream and the form collection.
	PayloadDados
)

func (f PayloadField) String() string {
	if f == PayloadDados {
		return "dados"
	}
	return "conteudo"
}

// Payload returns the raw body carried in the given field.
func (f Frame) Payload(field PayloadField) json.RawMessage {
	if field == PayloadDados {
		return f.Dados
	}
	return f.Conteudo
}

// NewFrame encodes v into the given payload field of a frame tagged with kind.
func NewFrame(kind Kind, field PayloadField, v any) (Frame, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", kind.Tag(), err)
	}
	frame := Frame{Tipo: kind.Tag()}
	if field == PayloadDados {
		frame.Dados = raw
	} else {
		frame.Conteudo = raw
	}
	return frame, nil
}

// Kind is the closed set of frame tags this client understands.
type Kind int

const (
	// KindUnknown covers every tag not listed below.
	KindUnknown Kind = iota
	KindBootstrap
	KindPresence
	KindFormCreated
	KindFormUpdated
	KindFormDeleted
	KindQuestionCreated
	KindQuestionUpdated
	KindQuestionDeleted
	KindResponseCreated
	KindResponseUpdated
	KindResponseDeleted
	KindError
)

var kindTags = map[Kind]string{
	KindBootstrap:       "bootstrap",
	KindPresence:        "presence",
	KindFormCreated:     "form_created",
	KindFormUpdated:     "form_updated",
	KindFormDeleted:     "form_deleted",
	KindQuestionCreated: "question_created",
	KindQuestionUpdated: "question_updated",
	KindQuestionDeleted: "question_deleted",
	KindResponseCreated: "response_created",
	KindResponseUpdated: "response_updated",
	KindResponseDeleted: "response_deleted",
	KindError:           "error",
}

var tagKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTags))
	for k, tag := range kindTags {
		m[tag] = k
	}
	return m
}()

// ParseKind maps a wire tag to its Kind. Unrecognized tags yield KindUnknown.
func ParseKind(tag string) Kind {
	if k, ok := tagKinds[tag]; ok {
		return k
	}
	return KindUnknown
}

// Tag returns the wire tag for k, or "unknown".
func (k Kind) Tag() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "unknown"
}

func (k Kind) String() string { return k.Tag() }

// CommandUpdateForm is the only command tag the server accepts.
const CommandUpdateForm = "update_formulario"

// Command is the envelope for mutation intents sent by the client.
type Command struct {
	Tipo     string          `json:"tipo"`
	Conteudo json.RawMessage `json:"conteudo"`
}

// NewCommand encodes v as the conteudo of a command tagged tipo.
func NewCommand(tipo string, v any) (Command, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Command{}, fmt.Errorf("encode %s command: %w", tipo, err)
	}
	return Command{Tipo: tipo, Conteudo: raw}, nil
}

// Error describes a protocol-level error pushed by the server.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
