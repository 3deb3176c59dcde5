package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"scriptstudio/internal/config"
	"scriptstudio/internal/db"
	"scriptstudio/internal/domain"
	"scriptstudio/internal/migrate"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC) }
	return e
}

func mustCreate(t *testing.T, e Engine, id, title string) domain.Order {
	t.Helper()
	o, err := e.CreateOrder(context.Background(), OrderCreateOptions{
		ID:          id,
		Title:       title,
		Description: "a description",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestCreateOrderDefaults(t *testing.T) {
	e := newTestEngine(t)
	o, err := e.CreateOrder(context.Background(), OrderCreateOptions{
		Title:       "Website Redesign",
		Description: "Redesign the landing page",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Status != domain.StatusOpen {
		t.Errorf("status = %s, want OPEN", o.Status)
	}
	if o.Priority != domain.PriorityMedium {
		t.Errorf("priority = %s, want MEDIUM", o.Priority)
	}
	if !strings.HasPrefix(o.ID, "PW-20250825-") {
		t.Errorf("id = %s, want PW-20250825-SSSS", o.ID)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.CreateOrder(context.Background(), OrderCreateOptions{Title: "  ", Description: "x"}); err == nil {
		t.Error("blank title accepted")
	}
	if _, err := e.CreateOrder(context.Background(), OrderCreateOptions{Title: "x", Description: ""}); err == nil {
		t.Error("blank description accepted")
	}
}

func TestCreateOrderDuplicateID(t *testing.T) {
	e := newTestEngine(t)
	mustCreate(t, e, "PW-20250825-0001", "first")
	_, err := e.CreateOrder(context.Background(), OrderCreateOptions{
		ID: "PW-20250825-0001", Title: "second", Description: "d",
	})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("duplicate id error = %v", err)
	}
}

func TestOrderLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := mustCreate(t, e, "PW-20250825-0001", "job")

	o, err := e.AcceptOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if o.Status != domain.StatusActive || o.AcceptedAt == nil {
		t.Errorf("after accept: status=%s accepted_at=%v", o.Status, o.AcceptedAt)
	}

	// Declining an active order is not a legal transition.
	if _, err := e.DeclineOrder(ctx, o.ID); err == nil {
		t.Error("decline from ACTIVE accepted")
	}

	o, err = e.CompleteOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if o.Status != domain.StatusCompleted || o.CompletedAt == nil {
		t.Errorf("after complete: status=%s completed_at=%v", o.Status, o.CompletedAt)
	}
	if o.DeclinedAt != nil {
		t.Error("completed order has declined_at set")
	}

	// Terminal states accept nothing.
	if _, err := e.AcceptOrder(ctx, o.ID); err == nil {
		t.Error("accept from COMPLETED accepted")
	}
}

func TestDeclineFromOpen(t *testing.T) {
	e := newTestEngine(t)
	o := mustCreate(t, e, "PW-20250825-0002", "job")
	o, err := e.DeclineOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if o.Status != domain.StatusDeclined || o.DeclinedAt == nil {
		t.Errorf("after decline: status=%s declined_at=%v", o.Status, o.DeclinedAt)
	}
	if o.Partition() != domain.PartitionArchived {
		t.Errorf("partition = %s, want archived", o.Partition())
	}
}

func TestListPartition(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "PW-20250825-0001", "open one")
	active := mustCreate(t, e, "PW-20250825-0002", "active one")
	done := mustCreate(t, e, "PW-20250825-0003", "done one")
	if _, err := e.AcceptOrder(ctx, active.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AcceptOrder(ctx, done.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CompleteOrder(ctx, done.ID); err != nil {
		t.Fatal(err)
	}

	checks := map[domain.Partition][]string{
		domain.PartitionOpen:     {"PW-20250825-0001"},
		domain.PartitionActive:   {"PW-20250825-0002"},
		domain.PartitionArchived: {"PW-20250825-0003"},
	}
	for p, want := range checks {
		got, err := e.ListPartition(ctx, p)
		if err != nil {
			t.Fatalf("list %s: %v", p, err)
		}
		if len(got) != len(want) {
			t.Errorf("partition %s: got %d orders, want %d", p, len(got), len(want))
			continue
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("partition %s[%d] = %s, want %s", p, i, got[i].ID, id)
			}
		}
	}
}

func TestArtifactKindFollowsStatus(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := mustCreate(t, e, "PW-20250825-0001", "job")

	a, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: o.ID, Title: "hook ideas", Quality: domain.TierBronze,
	})
	if err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if a.Kind != domain.KindSample {
		t.Errorf("kind = %s, want sample", a.Kind)
	}
	if a.APICost != 0.35 {
		t.Errorf("bronze cost = %v, want 0.35", a.APICost)
	}
	if a.Week != "2025-W35" {
		t.Errorf("week = %s, want 2025-W35", a.Week)
	}

	if _, err := e.AcceptOrder(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	a, err = e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: o.ID, Title: "final script", Quality: domain.TierGold,
	})
	if err != nil {
		t.Fatalf("create script: %v", err)
	}
	if a.Kind != domain.KindScript {
		t.Errorf("kind = %s, want script", a.Kind)
	}
	if a.APICost != 0.93 {
		t.Errorf("gold cost = %v, want 0.93", a.APICost)
	}

	if _, err := e.CompleteOrder(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: o.ID, Title: "late", Quality: domain.TierBronze,
	}); err == nil {
		t.Error("artifact accepted on archived order")
	}
}

func TestResearchCalls(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := mustCreate(t, e, "PW-20250825-0001", "job")
	if _, err := e.AcceptOrder(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	a, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: o.ID, Title: "script", Quality: domain.TierGold,
	})
	if err != nil {
		t.Fatal(err)
	}

	a, err = e.AddResearchCall(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("research call: %v", err)
	}
	if a.ResearchCalls != 1 {
		t.Errorf("research_calls = %d, want 1", a.ResearchCalls)
	}
	if a.ResearchCost != 0.01 {
		t.Errorf("research_cost = %v, want default 0.01", a.ResearchCost)
	}

	a, err = e.AddResearchCall(ctx, a.ID, 0.02)
	if err != nil {
		t.Fatal(err)
	}
	if a.ResearchCalls != 2 || a.ResearchCost != 0.03 {
		t.Errorf("after second call: calls=%d cost=%v", a.ResearchCalls, a.ResearchCost)
	}
}

func TestResearchCallRejectsSamples(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := mustCreate(t, e, "PW-20250825-0001", "job")
	a, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: o.ID, Title: "sample", Quality: domain.TierBronze,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddResearchCall(ctx, a.ID, 0); err == nil {
		t.Error("research call accepted on a sample")
	}
}

func TestDashboardStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	open := mustCreate(t, e, "PW-20250825-0001", "open")
	active := mustCreate(t, e, "PW-20250825-0002", "active")
	if _, err := e.AcceptOrder(ctx, active.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: open.ID, Title: "s", Quality: domain.TierBronze,
	}); err != nil {
		t.Fatal(err)
	}
	a, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: active.ID, Title: "sc", Quality: domain.TierSilver,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddResearchCall(ctx, a.ID, 0); err != nil {
		t.Fatal(err)
	}

	stats, err := e.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalOrders != 2 || stats.OpenOrders != 1 || stats.ActiveOrders != 1 {
		t.Errorf("order counts = %+v", stats)
	}
	if stats.TotalSamples != 1 || stats.TotalScripts != 1 {
		t.Errorf("artifact counts = %+v", stats)
	}
	wantAPI := 0.35 + 0.63
	if stats.APICostTotal < wantAPI-1e-9 || stats.APICostTotal > wantAPI+1e-9 {
		t.Errorf("api cost = %v, want %v", stats.APICostTotal, wantAPI)
	}
	if stats.ResearchCostTotal != 0.01 {
		t.Errorf("research cost = %v, want 0.01", stats.ResearchCostTotal)
	}
}

func TestArtifactsByWeek(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := mustCreate(t, e, "PW-20250825-0001", "job")

	weeks := []time.Time{
		time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 26, 9, 0, 0, 0, time.UTC),
	}
	for i, ts := range weeks {
		e.Now = func() time.Time { return ts }
		if _, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
			OrderID: o.ID, Title: "sample", Quality: domain.TierBronze,
		}); err != nil {
			t.Fatalf("artifact %d: %v", i, err)
		}
	}

	groups, err := e.ArtifactsByWeek(ctx, o.ID)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d week groups, want 2", len(groups))
	}
	if groups[0].Week != "2025-W35" || groups[1].Week != "2025-W34" {
		t.Errorf("weeks = %s, %s; want newest first", groups[0].Week, groups[1].Week)
	}
	if len(groups[0].Artifacts) != 2 || len(groups[1].Artifacts) != 1 {
		t.Errorf("group sizes = %d, %d", len(groups[0].Artifacts), len(groups[1].Artifacts))
	}
}

func TestDeleteOrderCascades(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := mustCreate(t, e, "PW-20250825-0001", "job")
	a, err := e.CreateArtifact(ctx, ArtifactCreateOptions{
		OrderID: o.ID, Title: "s", Quality: domain.TierBronze,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteOrder(ctx, o.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.Repo.GetOrder(ctx, o.ID); err == nil {
		t.Error("order still present after delete")
	}
	if _, err := e.Repo.GetArtifact(ctx, a.ID); err == nil {
		t.Error("artifact survived order delete")
	}
}
