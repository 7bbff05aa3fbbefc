package forms

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/formsync/internal/proto"
)

// Catalog is the form collection, most recently created first.
type Catalog []proto.FormSummary

// CatalogRouter merges form collection frames.
type CatalogRouter struct{}

// Field implements live.Router.
func (CatalogRouter) Field() proto.PayloadField { return proto.PayloadDados }

// Route implements live.Router.
func (CatalogRouter) Route(state *Catalog, kind proto.Kind, payload json.RawMessage) (*Catalog, bool, error) {
	const field = proto.PayloadDados

	switch kind {
	case proto.KindBootstrap:
		var list Catalog
		if err := decode(field, payload, &list); err != nil {
			return state, true, err
		}
		if list == nil {
			list = Catalog{}
		}
		return &list, true, nil

	case proto.KindFormCreated, proto.KindFormUpdated:
		var s proto.FormSummary
		if err := decode(field, payload, &s); err != nil {
			return state, true, err
		}
		if s.ID == "" {
			return state, true, fmt.Errorf("%s: form without id", kind)
		}
		var current []proto.FormSummary
		if state != nil {
			current = *state
		}
		next := Catalog(upsert(current, s, summaryID, true))
		return &next, true, nil

	case proto.KindFormDeleted:
		if state == nil {
			return state, true, nil
		}
		var ref proto.EntityRef
		if err := decode(field, payload, &ref); err != nil {
			return state, true, err
		}
		list, removed := remove(*state, ref.ID, summaryID)
		if !removed {
			return state, true, nil
		}
		next := Catalog(list)
		return &next, true, nil

	default:
		return state, false, nil
	}
}
