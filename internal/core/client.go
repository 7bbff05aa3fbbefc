package core

import "github.com/vovakirdan/formsync/internal/proto"

// Member is an authenticated principal attached to a room.
type Member struct {
	UserID int64
	Name   string
	Email  string
	Color  string
}

// Client is one channel as seen by the core layer. A client watches exactly
// one resource for its whole lifetime.
type Client struct {
	ID       string
	Member   Member
	Resource proto.Resource
	Events   chan *Event

	dropped DropReason
}

// DropReason tells why the hub closed a client's events.
type DropReason int

const (
	// DropNone means the client left, or its resource went away.
	DropNone DropReason = iota
	// DropLagging means the client's buffer overflowed and it missed events.
	DropLagging
	// DropShutdown means the hub stopped.
	DropShutdown
)

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, member Member, resource proto.Resource) *Client {
	if member.Name == "" {
		member.Name = id
	}
	return &Client{
		ID:       id,
		Member:   member,
		Resource: resource,
		Events:   make(chan *Event, 32),
	}
}

// Dropped reports why the hub closed Events. It is meaningful once Events
// has been closed.
func (c *Client) Dropped() DropReason { return c.dropped }
