package live

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/vovakirdan/formsync/internal/proto"
)

// Presence holds the principals attached to the same resource.
// Each snapshot replaces the set; nothing is diffed.
type Presence struct {
	members []proto.Principal
}

// Apply replaces the set with the principals encoded in raw.
func (p *Presence) Apply(raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("presence: empty payload")
	}
	var members []proto.Principal
	if err := json.Unmarshal(raw, &members); err != nil {
		return fmt.Errorf("presence: %w", err)
	}
	if members == nil {
		members = []proto.Principal{}
	}
	p.members = members
	return nil
}

// Members returns a copy of the current set.
func (p *Presence) Members() []proto.Principal {
	return slices.Clone(p.members)
}
