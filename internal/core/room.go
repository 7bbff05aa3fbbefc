package core

import "github.com/vovakirdan/formsync/internal/proto"

// Room groups clients watching the same resource.
type Room struct {
	Resource proto.Resource
	clients  []*Client
}

// NewRoom constructs a room with no clients.
func NewRoom(resource proto.Resource) *Room {
	return &Room{Resource: resource}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	for _, existing := range r.clients {
		if existing == c {
			return false
		}
	}
	r.clients = append(r.clients, c)
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	for i, existing := range r.clients {
		if existing == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return true
		}
	}
	return false
}

// Members lists the distinct users in the room in join order.
func (r *Room) Members() []Member {
	seen := make(map[int64]bool, len(r.clients))
	members := make([]Member, 0, len(r.clients))
	for _, c := range r.clients {
		if seen[c.Member.UserID] {
			continue
		}
		seen[c.Member.UserID] = true
		members = append(members, c.Member)
	}
	return members
}

// Broadcast sends an event to all clients in the room and returns the
// clients whose buffers were full. Those clients missed the event.
func (r *Room) Broadcast(event *Event) []*Client {
	var lagging []*Client
	for _, client := range r.clients {
		if !deliver(client, event) {
			lagging = append(lagging, client)
		}
	}
	return lagging
}

// Clients returns the clients in join order.
func (r *Room) Clients() []*Client {
	return append([]*Client(nil), r.clients...)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

func deliver(c *Client, event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
