package forms

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/formsync/internal/proto"
)

// FormRouter merges form channel frames into a proto.Form.
// Questions keep server order: unseen questions are appended.
// form_deleted clears the state.
type FormRouter struct{}

// Field implements live.Router.
func (FormRouter) Field() proto.PayloadField { return proto.PayloadConteudo }

// Route implements live.Router.
func (FormRouter) Route(state *proto.Form, kind proto.Kind, payload json.RawMessage) (*proto.Form, bool, error) {
	const field = proto.PayloadConteudo

	switch kind {
	case proto.KindBootstrap:
		var form proto.Form
		if err := decode(field, payload, &form); err != nil {
			return state, true, err
		}
		return &form, true, nil

	case proto.KindFormUpdated:
		next, err := patchForm(state, payload)
		if err != nil {
			return state, true, err
		}
		return next, true, nil

	case proto.KindQuestionCreated, proto.KindQuestionUpdated:
		if state == nil {
			return state, false, nil
		}
		var q proto.Question
		if err := decode(field, payload, &q); err != nil {
			return state, true, err
		}
		if q.ID == "" {
			return state, true, fmt.Errorf("%s: question without id", kind)
		}
		next := *state
		next.Perguntas = upsert(state.Perguntas, q, questionID, false)
		return &next, true, nil

	case proto.KindQuestionDeleted:
		if state == nil {
			return state, false, nil
		}
		var ref proto.EntityRef
		if err := decode(field, payload, &ref); err != nil {
			return state, true, err
		}
		questions, removed := remove(state.Perguntas, ref.ID, questionID)
		if !removed {
			return state, true, nil
		}
		next := *state
		next.Perguntas = questions
		return &next, true, nil

	case proto.KindFormDeleted:
		var ref proto.EntityRef
		if err := decode(field, payload, &ref); err != nil {
			return state, true, err
		}
		if state != nil && ref.ID != "" && ref.ID != state.ID {
			return state, true, nil
		}
		// The form is gone; the server closes the channel normally next.
		return nil, true, nil

	default:
		return state, false, nil
	}
}

// patchForm overlays the top-level fields present in payload onto state.
// A list field such as perguntas is replaced as a whole. Without prior state
// the payload is taken as the full form.
func patchForm(state *proto.Form, payload json.RawMessage) (*proto.Form, error) {
	const field = proto.PayloadConteudo

	if state == nil {
		var form proto.Form
		if err := decode(field, payload, &form); err != nil {
			return nil, err
		}
		return &form, nil
	}

	var patch map[string]json.RawMessage
	if err := decode(field, payload, &patch); err != nil {
		return nil, err
	}

	current, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode current form: %w", err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(current, &merged); err != nil {
		return nil, fmt.Errorf("decode current form: %w", err)
	}
	for key, value := range patch {
		merged[key] = value
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode patched form: %w", err)
	}
	var next proto.Form
	if err := json.Unmarshal(data, &next); err != nil {
		return nil, fmt.Errorf("decode patched form: %w", err)
	}
	return &next, nil
}
