package proto

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ResourceKind selects which synchronized object a channel carries.
type ResourceKind int

const (
	// ResourceForm is a single form definition.
	ResourceForm ResourceKind = iota
	// ResourceResponses is the response stream of one form.
	ResourceResponses
	// ResourceForms is the form collection.
	ResourceForms
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceForm:
		return "form"
	case ResourceResponses:
		return "responses"
	case ResourceForms:
		return "forms"
	default:
		return "unknown"
	}
}

// Field returns the payload field the server uses on this kind of channel.
func (k ResourceKind) Field() PayloadField {
	if k == ResourceForm {
		return PayloadConteudo
	}
	return PayloadDados
}

// ErrInvalidResourcePath is returned for channel paths outside the known set.
var ErrInvalidResourcePath = errors.New("invalid resource path")

// Resource identifies one synchronized object.
type Resource struct {
	Kind ResourceKind
	ID   string
}

// FormResource addresses the definition of form id.
func FormResource(id string) Resource { return Resource{Kind: ResourceForm, ID: id} }

// ResponsesResource addresses the response stream of form id.
func ResponsesResource(formID string) Resource {
	return Resource{Kind: ResourceResponses, ID: formID}
}

// FormsResource addresses the form collection.
func FormsResource() Resource { return Resource{Kind: ResourceForms} }

// Resolved reports whether the handle carries everything needed to open a channel.
func (r Resource) Resolved() bool {
	if r.Kind == ResourceForms {
		return true
	}
	return strings.TrimSpace(r.ID) != ""
}

// Path returns the channel path relative to /ws/.
func (r Resource) Path() string {
	switch r.Kind {
	case ResourceResponses:
		return "formularios/" + url.PathEscape(r.ID) + "/respostas"
	case ResourceForms:
		return "formularios"
	default:
		return "formularios/" + url.PathEscape(r.ID)
	}
}

func (r Resource) String() string { return r.Path() }

// ParseResourcePath is the inverse of Path. Leading and trailing slashes are ignored.
func ParseResourcePath(path string) (Resource, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] != "formularios" {
		return Resource{}, fmt.Errorf("%w: %q", ErrInvalidResourcePath, path)
	}

	switch {
	case len(parts) == 1:
		return FormsResource(), nil
	case len(parts) == 2 && parts[1] != "":
		id, err := url.PathUnescape(parts[1])
		if err != nil {
			return Resource{}, fmt.Errorf("%w: %v", ErrInvalidResourcePath, err)
		}
		return FormResource(id), nil
	case len(parts) == 3 && parts[1] != "" && parts[2] == "respostas":
		id, err := url.PathUnescape(parts[1])
		if err != nil {
			return Resource{}, fmt.Errorf("%w: %v", ErrInvalidResourcePath, err)
		}
		return ResponsesResource(id), nil
	default:
		return Resource{}, fmt.Errorf("%w: %q", ErrInvalidResourcePath, path)
	}
}

// Endpoint builds the channel URL for r on base, authenticating with credential.
// http and https bases are switched to ws and wss.
func Endpoint(base string, r Resource, credential string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	rawPath := strings.TrimRight(u.EscapedPath(), "/") + "/ws/" + r.Path()
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("build channel path: %w", err)
	}
	u.Path = path
	u.RawPath = rawPath
	query := u.Query()
	query.Set("access_token", credential)
	u.RawQuery = query.Encode()

	return u.String(), nil
}
