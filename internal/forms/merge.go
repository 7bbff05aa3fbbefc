package forms

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/vovakirdan/formsync/internal/proto"
)

// upsert returns a copy of items with item merged in by identity. An existing
// entry is replaced in place; a new one is prepended or appended.
func upsert[E any](items []E, item E, idOf func(E) string, prependNew bool) []E {
	id := idOf(item)
	if i := slices.IndexFunc(items, func(e E) bool { return idOf(e) == id }); i >= 0 {
		next := slices.Clone(items)
		next[i] = item
		return next
	}

	next := make([]E, 0, len(items)+1)
	if prependNew {
		next = append(next, item)
		return append(next, items...)
	}
	next = append(next, items...)
	return append(next, item)
}

// remove returns a copy of items without the entry whose identity is id.
// removed is false, and items is returned as is, when no entry matches.
func remove[E any](items []E, id string, idOf func(E) string) (next []E, removed bool) {
	i := slices.IndexFunc(items, func(e E) bool { return idOf(e) == id })
	if i < 0 {
		return items, false
	}
	next = slices.Clone(items)
	return slices.Delete(next, i, i+1), true
}

func decode(field proto.PayloadField, payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("missing %s payload", field)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", field, err)
	}
	return nil
}

func questionID(q proto.Question) string { return q.ID }
func responseID(r proto.Response) string { return r.ID }
func summaryID(s proto.FormSummary) string { return s.ID }
