package http

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vovakirdan/formsync/internal/auth"
	"github.com/vovakirdan/formsync/internal/core"
	"github.com/vovakirdan/formsync/internal/proto"
	"github.com/vovakirdan/formsync/internal/store"
)

func formToProto(f *store.Form) proto.Form {
	questions := make([]proto.Question, 0, len(f.Questions))
	for _, q := range f.Questions {
		questions = append(questions, proto.Question{
			ID:          q.ID,
			Texto:       q.Text,
			Tipo:        q.Kind,
			Ordem:       q.Position,
			Obrigatoria: q.Required,
			Opcoes:      q.Options,
		})
	}
	return proto.Form{
		ID:           f.ID,
		Titulo:       f.Title,
		Descricao:    f.Description,
		Perguntas:    questions,
		AtualizadoEm: f.UpdatedAt.Unix(),
	}
}

func responseToProto(r *store.Response) proto.Response {
	return proto.Response{
		ID:           r.ID,
		FormularioID: r.FormID,
		Respostas:    r.Answers,
		CriadoEm:     r.CreatedAt.Unix(),
	}
}

func responsesToProto(list []*store.Response) []proto.Response {
	out := make([]proto.Response, 0, len(list))
	for _, r := range list {
		out = append(out, responseToProto(r))
	}
	return out
}

func summaryToProto(s *store.FormSummary) proto.FormSummary {
	return proto.FormSummary{
		ID:             s.ID,
		Titulo:         s.Title,
		Descricao:      s.Description,
		TotalPerguntas: s.QuestionCount,
		TotalRespostas: s.ResponseCount,
		AtualizadoEm:   s.UpdatedAt.Unix(),
	}
}

func summariesToProto(list []*store.FormSummary) []proto.FormSummary {
	out := make([]proto.FormSummary, 0, len(list))
	for _, s := range list {
		out = append(out, summaryToProto(s))
	}
	return out
}

func memberFromIdentity(identity *auth.Identity) core.Member {
	return core.Member{
		UserID: identity.User.ID,
		Name:   identity.User.Name,
		Email:  identity.User.Email,
		Color:  identity.Color,
	}
}

func membersToProto(members []core.Member) []proto.Principal {
	out := make([]proto.Principal, 0, len(members))
	for _, m := range members {
		out = append(out, proto.Principal{
			ID:    strconv.FormatInt(m.UserID, 10),
			Nome:  m.Name,
			Email: m.Email,
			Cor:   m.Color,
		})
	}
	return out
}

func patchFromProto(p proto.FormPatch) store.FormPatch {
	patch := store.FormPatch{
		Title:       p.Titulo,
		Description: p.Descricao,
		Remove:      p.Remover,
	}
	for _, q := range p.Perguntas {
		patch.Questions = append(patch.Questions, store.QuestionPatch{
			ID:       q.ID,
			New:      q.Nova,
			Text:     q.Texto,
			Kind:     q.Tipo,
			Required: q.Obrigatoria,
			Options:  q.Opcoes,
		})
	}
	for _, o := range p.Ordem {
		patch.Order = append(patch.Order, store.QuestionPosition{ID: o.ID, Position: o.Ordem})
	}
	return patch
}

// commandFromFrame maps an inbound command on a channel watching r to a hub command.
func commandFromFrame(r proto.Resource, cmd proto.Command) (*core.Command, *proto.Error) {
	if cmd.Tipo != proto.CommandUpdateForm {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: fmt.Sprintf("unknown command %q", cmd.Tipo)}
	}
	if r.Kind != proto.ResourceForm {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "commands are accepted on form channels only"}
	}

	var patch proto.FormPatch
	if err := json.Unmarshal(cmd.Conteudo, &patch); err != nil {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid conteudo"}
	}

	return &core.Command{
		Kind:   core.CommandPatchForm,
		FormID: r.ID,
		Patch:  patchFromProto(patch),
	}, nil
}

func errorToProto(err error) *proto.Error {
	ce := core.AsCoreError(err)
	return &proto.Error{Code: ce.Code, Msg: ce.Message}
}

// frameFromEvent renders event for a channel using the given payload field.
func frameFromEvent(field proto.PayloadField, event *core.Event) (proto.Frame, error) {
	switch event.Kind {
	case core.EventFormSnapshot:
		return proto.NewFrame(proto.KindBootstrap, field, formToProto(event.Form))
	case core.EventFormUpdated:
		return proto.NewFrame(proto.KindFormUpdated, field, formToProto(event.Form))
	case core.EventFormDeleted:
		return proto.NewFrame(proto.KindFormDeleted, field, proto.EntityRef{ID: event.ID})
	case core.EventResponsesSnapshot:
		return proto.NewFrame(proto.KindBootstrap, field, responsesToProto(event.Responses))
	case core.EventResponseCreated:
		return proto.NewFrame(proto.KindResponseCreated, field, responseToProto(event.Response))
	case core.EventResponseDeleted:
		return proto.NewFrame(proto.KindResponseDeleted, field, proto.EntityRef{ID: event.ID})
	case core.EventCatalogSnapshot:
		return proto.NewFrame(proto.KindBootstrap, field, summariesToProto(event.Summaries))
	case core.EventSummaryCreated:
		return proto.NewFrame(proto.KindFormCreated, field, summaryToProto(event.Summary))
	case core.EventSummaryUpdated:
		return proto.NewFrame(proto.KindFormUpdated, field, summaryToProto(event.Summary))
	case core.EventPresence:
		return proto.NewFrame(proto.KindPresence, field, membersToProto(event.Members))
	case core.EventError:
		if event.Error == nil {
			return proto.NewFrame(proto.KindError, field, proto.Error{Code: "unknown", Msg: "unknown error"})
		}
		return proto.NewFrame(proto.KindError, field, proto.Error{Code: event.Error.Code, Msg: event.Error.Message})
	default:
		return proto.Frame{}, fmt.Errorf("unmapped event kind %d", event.Kind)
	}
}
