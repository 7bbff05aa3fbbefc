package core

import "github.com/vovakirdan/formsync/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventFormSnapshot delivers a whole form on join.
	EventFormSnapshot EventKind = iota
	// EventFormUpdated carries the authoritative form after a patch.
	EventFormUpdated
	// EventFormDeleted announces that a form is gone. Its rooms close after it.
	EventFormDeleted
	// EventResponsesSnapshot delivers a form's responses on join.
	EventResponsesSnapshot
	// EventResponseCreated carries a new submission.
	EventResponseCreated
	// EventResponseDeleted announces a removed submission.
	EventResponseDeleted
	// EventCatalogSnapshot delivers the form collection on join.
	EventCatalogSnapshot
	// EventSummaryCreated carries the collection entry of a new form.
	EventSummaryCreated
	// EventSummaryUpdated carries a changed collection entry.
	EventSummaryUpdated
	// EventPresence replaces the member list of a room.
	EventPresence
	// EventError notifies a client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Only the fields that belong to Kind are set.
type Event struct {
	Kind      EventKind
	ID        string
	Form      *store.Form
	Response  *store.Response
	Responses []*store.Response
	Summary   *store.FormSummary
	Summaries []*store.FormSummary
	Members   []Member
	Error     *CoreError
}
