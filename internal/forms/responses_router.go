package forms

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/formsync/internal/proto"
)

// Responses is the response stream of one form, newest first.
type Responses []proto.Response

// ResponsesRouter merges response stream frames. Unseen responses are prepended.
type ResponsesRouter struct{}

// Field implements live.Router.
func (ResponsesRouter) Field() proto.PayloadField { return proto.PayloadDados }

// Route implements live.Router.
func (ResponsesRouter) Route(state *Responses, kind proto.Kind, payload json.RawMessage) (*Responses, bool, error) {
	const field = proto.PayloadDados

	switch kind {
	case proto.KindBootstrap:
		var list Responses
		if err := decode(field, payload, &list); err != nil {
			return state, true, err
		}
		if list == nil {
			list = Responses{}
		}
		return &list, true, nil

	case proto.KindResponseCreated, proto.KindResponseUpdated:
		var r proto.Response
		if err := decode(field, payload, &r); err != nil {
			return state, true, err
		}
		if r.ID == "" {
			return state, true, fmt.Errorf("%s: response without id", kind)
		}
		var current []proto.Response
		if state != nil {
			current = *state
		}
		next := Responses(upsert(current, r, responseID, true))
		return &next, true, nil

	case proto.KindResponseDeleted:
		if state == nil {
			return state, true, nil
		}
		var ref proto.EntityRef
		if err := decode(field, payload, &ref); err != nil {
			return state, true, err
		}
		list, removed := remove(*state, ref.ID, responseID)
		if !removed {
			return state, true, nil
		}
		next := Responses(list)
		return &next, true, nil

	case proto.KindFormDeleted:
		// The stream belongs to the deleted form and ends with it.
		return nil, true, nil

	default:
		return state, false, nil
	}
}
