package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"demandas/internal/domain"
	"demandas/internal/events"
)

func TestLatestEventsCursor(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	w := events.Writer{}
	for _, id := range []string{"1", "2", "3"} {
		if err := w.Append(ctx, tx, events.DemandaCreated, events.KindDemanda, id, "ana", nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Append(ctx, tx, events.DemandaConcluded, events.KindDemanda, "2", "", events.Payload{"week": "2025-W03"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	page, err := r.LatestEvents(ctx, EventFilter{Limit: 2})
	if err != nil || len(page) != 2 {
		t.Fatalf("first page: %v %v", page, err)
	}
	if page[0].Type != events.DemandaConcluded || page[0].ActorID != "system" {
		t.Fatalf("newest first with system actor, got %+v", page[0])
	}
	rest, err := r.LatestEvents(ctx, EventFilter{Limit: 10, Cursor: page[1].ID})
	if err != nil || len(rest) != 2 || rest[0].EntityID != "2" || rest[1].EntityID != "1" {
		t.Fatalf("second page: %+v %v", rest, err)
	}
	for _, e := range rest {
		if e.Payload != "{}" {
			t.Fatalf("nil payload should be stored as {}, got %q", e.Payload)
		}
	}

	hist, err := r.EventsForEntity(ctx, events.KindDemanda, "2")
	if err != nil || len(hist) != 2 || hist[0].Type != events.DemandaCreated {
		t.Fatalf("history oldest first: %+v %v", hist, err)
	}
	typed, err := r.LatestEvents(ctx, EventFilter{Type: events.DemandaCreated})
	if err != nil || len(typed) != 3 {
		t.Fatalf("type filter: %d %v", len(typed), err)
	}
}

func TestAPIKeyLookup(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	key := domain.APIKey{ID: "k1", ActorID: "ana", Name: "ci", KeyHash: HashAPIKey("secret"), CreatedAt: time.Now().UTC()}
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetAPIKeyByHash(ctx, HashAPIKey("secret"))
	if err != nil || got.ID != "k1" || got.ActorID != "ana" {
		t.Fatalf("lookup: %+v %v", got, err)
	}
	if _, err := r.GetAPIKeyByHash(ctx, HashAPIKey("other")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	keys, err := r.ListAPIKeys(ctx, "bruno")
	if err != nil || len(keys) != 0 {
		t.Fatalf("actor filter: %v %v", keys, err)
	}
	if err := r.DeleteAPIKey(ctx, nil, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.DeleteAPIKey(ctx, nil, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
