package core

import "github.com/vovakirdan/formsync/internal/store"

// CommandKind describes the mutation requested.
type CommandKind int

const (
	// CommandPatchForm applies a field diff to a form.
	CommandPatchForm CommandKind = iota
	// CommandCreateForm creates an empty form.
	CommandCreateForm
	// CommandDeleteForm removes a form and closes its rooms.
	CommandDeleteForm
	// CommandCreateResponse stores a submission.
	CommandCreateResponse
	// CommandDeleteResponse removes a submission.
	CommandDeleteResponse
)

func (k CommandKind) String() string {
	switch k {
	case CommandPatchForm:
		return "patch_form"
	case CommandCreateForm:
		return "create_form"
	case CommandDeleteForm:
		return "delete_form"
	case CommandCreateResponse:
		return "create_response"
	case CommandDeleteResponse:
		return "delete_response"
	default:
		return "unknown"
	}
}

// Command is a mutation submitted through Hub.Do.
type Command struct {
	Kind       CommandKind
	FormID     string
	ResponseID string

	Patch       store.FormPatch
	Title       string
	Description string
	Answers     map[string]string

	reply chan Result
}

// Result is the outcome of a command.
type Result struct {
	Form     *store.Form
	Response *store.Response
	Err      error
}
