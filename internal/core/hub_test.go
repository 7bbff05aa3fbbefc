package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/formsync/internal/proto"
	"github.com/vovakirdan/formsync/internal/store"
)

func strPtr(s string) *string { return &s }

func TestHubJoinBootstrapAndPresence(t *testing.T) {
	hub, _ := startTestHub(t)
	form := mustCreateForm(t, hub, "Survey")

	alice := NewClient("a", Member{UserID: 1, Name: "alice"}, proto.FormResource(form.ID))
	hub.RegisterClient(alice)

	snap := mustEvent(t, alice.Events, EventFormSnapshot)
	if snap.Form == nil || snap.Form.ID != form.ID || snap.Form.Title != "Survey" {
		t.Fatalf("unexpected snapshot: %+v", snap.Form)
	}
	pres := mustEvent(t, alice.Events, EventPresence)
	if len(pres.Members) != 1 || pres.Members[0].Name != "alice" {
		t.Fatalf("unexpected presence: %+v", pres.Members)
	}

	// A second channel of the same user does not duplicate the member.
	aliceTab := NewClient("a2", Member{UserID: 1, Name: "alice"}, proto.FormResource(form.ID))
	bob := NewClient("b", Member{UserID: 2, Name: "bob"}, proto.FormResource(form.ID))
	hub.RegisterClient(aliceTab)
	hub.RegisterClient(bob)

	mustEvent(t, alice.Events, EventPresence)
	pres = mustEvent(t, alice.Events, EventPresence)
	if len(pres.Members) != 2 || pres.Members[0].Name != "alice" || pres.Members[1].Name != "bob" {
		t.Fatalf("unexpected presence after joins: %+v", pres.Members)
	}

	hub.UnregisterClient(bob)
	pres = mustEvent(t, alice.Events, EventPresence)
	if len(pres.Members) != 1 {
		t.Fatalf("expected bob gone, got %+v", pres.Members)
	}
	mustClose(t, bob.Events)
}

func TestHubPatchRebroadcasts(t *testing.T) {
	hub, _ := startTestHub(t)
	form := mustCreateForm(t, hub, "Survey")

	editor := NewClient("e", Member{UserID: 1, Name: "editor"}, proto.FormResource(form.ID))
	viewer := NewClient("v", Member{UserID: 2, Name: "viewer"}, proto.FormResource(form.ID))
	catalog := NewClient("c", Member{UserID: 2, Name: "viewer"}, proto.FormsResource())
	for _, c := range []*Client{editor, viewer, catalog} {
		hub.RegisterClient(c)
	}
	mustEvent(t, catalog.Events, EventCatalogSnapshot)

	_, err := hub.Do(context.Background(), Command{
		Kind:   CommandPatchForm,
		FormID: form.ID,
		Patch: store.FormPatch{Questions: []store.QuestionPatch{
			{ID: "q1", New: true, Text: strPtr("Name?")},
		}},
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	for _, c := range []*Client{editor, viewer} {
		ev := mustEvent(t, c.Events, EventFormUpdated)
		if len(ev.Form.Questions) != 1 || ev.Form.Questions[0].Text != "Name?" {
			t.Fatalf("unexpected form for %s: %+v", c.ID, ev.Form)
		}
	}

	ev := mustEvent(t, catalog.Events, EventSummaryUpdated)
	if ev.Summary.QuestionCount != 1 {
		t.Fatalf("expected question count 1, got %d", ev.Summary.QuestionCount)
	}
}

func TestHubPatchUnknownForm(t *testing.T) {
	hub, _ := startTestHub(t)

	_, err := hub.Do(context.Background(), Command{Kind: CommandPatchForm, FormID: "ghost"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ce := AsCoreError(err); ce.Code != ErrCodeFormNotFound {
		t.Fatalf("expected form_not_found, got %q", ce.Code)
	}

	_, err = hub.Do(context.Background(), Command{Kind: CommandCreateForm, Title: "  "})
	if ce := AsCoreError(err); ce.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

func TestHubJoinUnknownFormClosesClient(t *testing.T) {
	hub, _ := startTestHub(t)

	alice := NewClient("a", Member{UserID: 1, Name: "alice"}, proto.ResponsesResource("ghost"))
	hub.RegisterClient(alice)

	events := mustClose(t, alice.Events)
	if len(events) != 1 || events[0].Kind != EventError || events[0].Error.Code != ErrCodeFormNotFound {
		t.Fatalf("expected a single form_not_found error, got %+v", events)
	}
}

func TestHubDeleteFormClosesRooms(t *testing.T) {
	hub, _ := startTestHub(t)
	form := mustCreateForm(t, hub, "Survey")

	watcher := NewClient("w", Member{UserID: 1, Name: "alice"}, proto.FormResource(form.ID))
	catalog := NewClient("c", Member{UserID: 1, Name: "alice"}, proto.FormsResource())
	hub.RegisterClient(watcher)
	hub.RegisterClient(catalog)
	mustEvent(t, watcher.Events, EventPresence)
	mustEvent(t, catalog.Events, EventPresence)

	if _, err := hub.Do(context.Background(), Command{Kind: CommandDeleteForm, FormID: form.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	events := mustClose(t, watcher.Events)
	if len(events) == 0 || events[len(events)-1].Kind != EventFormDeleted {
		t.Fatalf("expected form_deleted before close, got %+v", events)
	}
	if watcher.Dropped() != DropNone {
		t.Fatalf("closed room must not mark client as dropped, got %v", watcher.Dropped())
	}

	ev := mustEvent(t, catalog.Events, EventFormDeleted)
	if ev.ID != form.ID {
		t.Fatalf("unexpected deleted id %q", ev.ID)
	}
}

func TestHubResponses(t *testing.T) {
	hub, _ := startTestHub(t)
	form := mustCreateForm(t, hub, "Survey")

	viewer := NewClient("v", Member{UserID: 1, Name: "alice"}, proto.ResponsesResource(form.ID))
	hub.RegisterClient(viewer)
	snap := mustEvent(t, viewer.Events, EventResponsesSnapshot)
	if len(snap.Responses) != 0 {
		t.Fatalf("expected no responses, got %d", len(snap.Responses))
	}

	res, err := hub.Do(context.Background(), Command{
		Kind:    CommandCreateResponse,
		FormID:  form.ID,
		Answers: map[string]string{"q1": "yes"},
	})
	if err != nil {
		t.Fatalf("create response: %v", err)
	}

	created := mustEvent(t, viewer.Events, EventResponseCreated)
	if created.Response.ID != res.Response.ID || created.Response.Answers["q1"] != "yes" {
		t.Fatalf("unexpected created response: %+v", created.Response)
	}

	if _, err := hub.Do(context.Background(), Command{
		Kind: CommandDeleteResponse, FormID: form.ID, ResponseID: res.Response.ID,
	}); err != nil {
		t.Fatalf("delete response: %v", err)
	}
	deleted := mustEvent(t, viewer.Events, EventResponseDeleted)
	if deleted.ID != res.Response.ID {
		t.Fatalf("unexpected deleted id %q", deleted.ID)
	}

	_, err = hub.Do(context.Background(), Command{
		Kind: CommandDeleteResponse, FormID: form.ID, ResponseID: res.Response.ID,
	})
	if ce := AsCoreError(err); ce.Code != ErrCodeResponseNotFound {
		t.Fatalf("expected response_not_found, got %v", err)
	}
}

func TestHubDropsLaggingClient(t *testing.T) {
	hub, _ := startTestHub(t)
	form := mustCreateForm(t, hub, "Survey")

	slow := NewClient("s", Member{UserID: 1, Name: "slow"}, proto.FormResource(form.ID))
	hub.RegisterClient(slow)

	for i := 0; i < cap(slow.Events)+1; i++ {
		if _, err := hub.Do(context.Background(), Command{
			Kind:   CommandPatchForm,
			FormID: form.ID,
			Patch:  store.FormPatch{Title: strPtr("t")},
		}); err != nil {
			t.Fatalf("patch %d: %v", i, err)
		}
	}

	mustClose(t, slow.Events)
	if slow.Dropped() != DropLagging {
		t.Fatalf("expected client to be marked lagging, got %v", slow.Dropped())
	}
}

func TestHubStopped(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("hub did not stop")
	}

	if _, err := hub.Do(context.Background(), Command{Kind: CommandCreateForm, Title: "x"}); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}

	c := NewClient("late", Member{UserID: 1}, proto.FormsResource())
	hub.RegisterClient(c)
	mustClose(t, c.Events)
	if c.Dropped() != DropShutdown {
		t.Fatalf("expected shutdown drop, got %v", c.Dropped())
	}
}
