package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/formsync/internal/proto"
	"github.com/vovakirdan/formsync/internal/store"
)

// Hub owns every room and serializes all mutations. Rooms are keyed by the
// resource their clients watch; a form mutation fans out to the form room,
// its response room and the collection room as needed.
type Hub struct {
	store store.Store
	log   *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan *Command
	done       chan struct{}

	rooms   map[proto.Resource]*Room
	clients map[*Client]struct{}
}

// NewHub creates a new hub backed by st.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:      st,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan *Command),
		done:       make(chan struct{}),
		rooms:      make(map[proto.Resource]*Room),
		clients:    make(map[*Client]struct{}),
	}
}

// Run processes registrations and commands until ctx is cancelled.
// On return every client's event channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.join(ctx, c)
		case c := <-h.unregister:
			h.leave(c)
		case cmd := <-h.commands:
			cmd.reply <- h.execute(ctx, cmd)
		}
	}
}

// RegisterClient joins c to the room of its resource. The client receives the
// bootstrap of the resource followed by a presence snapshot. If the resource
// cannot be loaded the client receives an error event and its channel is closed.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.dropped = DropShutdown
		close(c.Events)
	}
}

// UnregisterClient removes c from its room. It is a no-op for clients the hub
// already dropped.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Do runs cmd on the hub goroutine and waits for its result.
func (h *Hub) Do(ctx context.Context, cmd Command) (Result, error) {
	cmd.reply = make(chan Result, 1)

	select {
	case h.commands <- &cmd:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-h.done:
		return Result{}, ErrHubStopped
	}

	select {
	case res := <-cmd.reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (h *Hub) join(ctx context.Context, c *Client) {
	bootstrap, err := h.bootstrap(ctx, c.Resource)
	if err != nil {
		h.log.Warn().Err(err).Str("client_id", c.ID).Str("resource", c.Resource.Path()).Msg("cannot bootstrap client")
		deliver(c, &Event{Kind: EventError, Error: AsCoreError(err)})
		close(c.Events)
		return
	}

	room, ok := h.rooms[c.Resource]
	if !ok {
		room = NewRoom(c.Resource)
		h.rooms[c.Resource] = room
	}
	room.AddClient(c)
	h.clients[c] = struct{}{}

	deliver(c, bootstrap)
	h.log.Debug().Str("client_id", c.ID).Str("resource", c.Resource.Path()).Msg("client joined")
	h.broadcastPresence(room)
}

func (h *Hub) bootstrap(ctx context.Context, r proto.Resource) (*Event, error) {
	switch r.Kind {
	case proto.ResourceForm:
		form, err := h.store.GetForm(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		return &Event{Kind: EventFormSnapshot, Form: form}, nil
	case proto.ResourceResponses:
		if _, err := h.store.GetForm(ctx, r.ID); err != nil {
			return nil, err
		}
		responses, err := h.store.ListResponses(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		return &Event{Kind: EventResponsesSnapshot, ID: r.ID, Responses: responses}, nil
	case proto.ResourceForms:
		summaries, err := h.store.ListForms(ctx)
		if err != nil {
			return nil, err
		}
		return &Event{Kind: EventCatalogSnapshot, Summaries: summaries}, nil
	default:
		return nil, BadRequest("unknown resource %s", r)
	}
}

func (h *Hub) leave(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	room := h.detach(c)
	h.log.Debug().Str("client_id", c.ID).Str("resource", c.Resource.Path()).Msg("client left")
	if room != nil {
		h.broadcastPresence(room)
	}
}

// detach removes c from the hub and closes its events. It returns the room c
// was in when the room still has clients.
func (h *Hub) detach(c *Client) *Room {
	delete(h.clients, c)
	close(c.Events)

	room, ok := h.rooms[c.Resource]
	if !ok {
		return nil
	}
	room.RemoveClient(c)
	if room.Empty() {
		delete(h.rooms, c.Resource)
		return nil
	}
	return room
}

func (h *Hub) broadcast(r proto.Resource, event *Event) {
	room, ok := h.rooms[r]
	if !ok {
		return
	}
	lagging := room.Broadcast(event)
	if len(lagging) == 0 {
		return
	}
	for _, c := range lagging {
		h.log.Warn().Str("client_id", c.ID).Str("resource", r.Path()).Msg("dropping lagging client")
		c.dropped = DropLagging
		h.detach(c)
	}
	if remaining, ok := h.rooms[r]; ok {
		h.broadcastPresence(remaining)
	}
}

func (h *Hub) broadcastPresence(room *Room) {
	h.broadcast(room.Resource, &Event{Kind: EventPresence, Members: room.Members()})
}

// closeRoom drops every client of r after the last event was queued.
func (h *Hub) closeRoom(r proto.Resource) {
	room, ok := h.rooms[r]
	if !ok {
		return
	}
	for _, c := range room.Clients() {
		h.detach(c)
	}
	delete(h.rooms, r)
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		c.dropped = DropShutdown
		close(c.Events)
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[proto.Resource]*Room)
	h.log.Info().Msg("hub stopped")
}

func (h *Hub) execute(ctx context.Context, cmd *Command) Result {
	var res Result
	switch cmd.Kind {
	case CommandPatchForm:
		res = h.patchForm(ctx, cmd)
	case CommandCreateForm:
		res = h.createForm(ctx, cmd)
	case CommandDeleteForm:
		res = h.deleteForm(ctx, cmd)
	case CommandCreateResponse:
		res = h.createResponse(ctx, cmd)
	case CommandDeleteResponse:
		res = h.deleteResponse(ctx, cmd)
	default:
		res = Result{Err: BadRequest("unknown command")}
	}

	if res.Err != nil {
		h.log.Debug().Err(res.Err).Stringer("command", cmd.Kind).Str("form_id", cmd.FormID).Msg("command failed")
	}
	return res
}

func (h *Hub) patchForm(ctx context.Context, cmd *Command) Result {
	for _, q := range cmd.Patch.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return Result{Err: BadRequest("question without id")}
		}
	}

	form, err := h.store.ApplyPatch(ctx, cmd.FormID, cmd.Patch)
	if err != nil {
		return Result{Err: err}
	}

	h.broadcast(proto.FormResource(form.ID), &Event{Kind: EventFormUpdated, Form: form})
	h.refreshSummary(ctx, form.ID)
	return Result{Form: form}
}

func (h *Hub) createForm(ctx context.Context, cmd *Command) Result {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return Result{Err: BadRequest("title is required")}
	}

	form, err := h.store.CreateForm(ctx, title, strings.TrimSpace(cmd.Description))
	if err != nil {
		return Result{Err: err}
	}

	summary, err := h.store.GetFormSummary(ctx, form.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("form_id", form.ID).Msg("cannot load new form summary")
	} else {
		h.broadcast(proto.FormsResource(), &Event{Kind: EventSummaryCreated, Summary: summary})
	}
	return Result{Form: form}
}

func (h *Hub) deleteForm(ctx context.Context, cmd *Command) Result {
	if err := h.store.DeleteForm(ctx, cmd.FormID); err != nil {
		return Result{Err: err}
	}

	deleted := &Event{Kind: EventFormDeleted, ID: cmd.FormID}
	for _, r := range []proto.Resource{proto.FormResource(cmd.FormID), proto.ResponsesResource(cmd.FormID)} {
		h.broadcast(r, deleted)
		h.closeRoom(r)
	}
	h.broadcast(proto.FormsResource(), deleted)
	return Result{}
}

func (h *Hub) createResponse(ctx context.Context, cmd *Command) Result {
	response, err := h.store.CreateResponse(ctx, cmd.FormID, cmd.Answers)
	if err != nil {
		return Result{Err: err}
	}

	h.broadcast(proto.ResponsesResource(cmd.FormID), &Event{Kind: EventResponseCreated, ID: cmd.FormID, Response: response})
	h.refreshSummary(ctx, cmd.FormID)
	return Result{Response: response}
}

func (h *Hub) deleteResponse(ctx context.Context, cmd *Command) Result {
	if err := h.store.DeleteResponse(ctx, cmd.FormID, cmd.ResponseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{Err: coreError(ErrCodeResponseNotFound, err.Error())}
		}
		return Result{Err: err}
	}

	h.broadcast(proto.ResponsesResource(cmd.FormID), &Event{Kind: EventResponseDeleted, ID: cmd.ResponseID})
	h.refreshSummary(ctx, cmd.FormID)
	return Result{}
}

func (h *Hub) refreshSummary(ctx context.Context, formID string) {
	if _, ok := h.rooms[proto.FormsResource()]; !ok {
		return
	}
	summary, err := h.store.GetFormSummary(ctx, formID)
	if err != nil {
		h.log.Warn().Err(err).Str("form_id", formID).Msg("cannot refresh form summary")
		return
	}
	h.broadcast(proto.FormsResource(), &Event{Kind: EventSummaryUpdated, Summary: summary})
}
