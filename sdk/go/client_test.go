package demandassdk_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"demandas/internal/config"
	"demandas/internal/db"
	"demandas/internal/engine"
	"demandas/internal/migrate"
	"demandas/internal/server"
	demandassdk "demandas/sdk/go"
)

func newClient(t *testing.T) *demandassdk.Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), nil)
	handler, err := server.New(server.Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	_, raw, err := e.CreateAPIKey(context.Background(), "sdk-tester", "test")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	c := demandassdk.New(srv.URL)
	c.APIKey = raw
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	planned := "2025-01-13"
	d, err := c.CreateDemanda(ctx, demandassdk.NewDemanda{Nome: "Pagar fornecedores", DataPrevista: &planned})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.State != "pending" || d.PlannedWeek == nil || *d.PlannedWeek != "2025-W03" {
		t.Fatalf("unexpected demanda %+v", d)
	}

	nome := "Pagar fornecedores (lote 2)"
	d, err = c.UpdateDemanda(ctx, d.ID, demandassdk.DemandaPatch{Nome: &nome})
	if err != nil || d.Nome != nome {
		t.Fatalf("update: %+v %v", d, err)
	}

	if _, err := c.ConcludeDemanda(ctx, d.ID); err != nil {
		t.Fatalf("conclude: %v", err)
	}
	_, err = c.ConcludeDemanda(ctx, d.ID)
	var apiErr *demandassdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 409 || apiErr.Code != "invalid_transition" {
		t.Fatalf("expected conflict, got %v", err)
	}

	completed, err := c.ListDemandas(ctx, demandassdk.ListOptions{Status: "completed"})
	if err != nil || len(completed) != 1 {
		t.Fatalf("list completed: %+v %v", completed, err)
	}
	if _, err := c.ReopenDemanda(ctx, d.ID); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	b, err := c.WeekReport(ctx, "2025-W03")
	if err != nil {
		t.Fatalf("week report: %v", err)
	}
	if b.PlannedCount != 1 || b.PendingCount != 1 || b.AdherencePercent != 0 {
		t.Fatalf("unexpected bucket %+v", b)
	}
	p, err := c.PeriodReport(ctx, "2025-01-20")
	if err != nil {
		t.Fatalf("period report: %v", err)
	}
	if p.Label != "2025-01" || p.Totals.Planned != 1 {
		t.Fatalf("unexpected period %+v", p)
	}

	page, err := c.EventsPage(ctx, 10, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(page.Items) == 0 || page.Items[0].Type != "demanda.reopened" || page.Items[0].ActorID != "sdk-tester" {
		t.Fatalf("unexpected events %+v", page.Items)
	}

	if err := c.DeleteDemanda(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = c.GetDemanda(ctx, d.ID)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
