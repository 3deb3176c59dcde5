package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scriptstudio/internal/config"
	"scriptstudio/internal/domain"
	"scriptstudio/internal/events"
	"scriptstudio/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// OrderCreateOptions are parameters for creating an order.
type OrderCreateOptions struct {
	ID          string
	Title       string
	Description string
	Priority    domain.Priority
}

func (e Engine) CreateOrder(ctx context.Context, opts OrderCreateOptions) (domain.Order, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Order{}, errors.New("title is required")
	}
	if strings.TrimSpace(opts.Description) == "" {
		return domain.Order{}, errors.New("description is required")
	}
	now := e.now()
	id := opts.ID
	if id == "" {
		id = domain.NewOrderID(now)
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	o := domain.Order{
		ID:          id,
		Title:       strings.TrimSpace(opts.Title),
		Description: strings.TrimSpace(opts.Description),
		Status:      domain.StatusOpen,
		Priority:    opts.Priority,
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertOrderTx(ctx, tx, o); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.Order{}, fmt.Errorf("order id %s already exists", o.ID)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "order.created", "order", o.ID, events.EventPayload{"title": o.Title, "status": o.Status}); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// SetOrderStatus drives an order through its lifecycle. The target status
// is reached via the matching lifecycle event; anything the machine
// rejects is an invalid transition.
func (e Engine) SetOrderStatus(ctx context.Context, id string, target domain.Status) (domain.Order, error) {
	o, err := e.Repo.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}
	event, err := domain.EventForTarget(target)
	if err != nil {
		return o, err
	}
	lc, err := domain.NewLifecycle(o.ID, o.Status)
	if err != nil {
		return o, err
	}
	if err := lc.Apply(event); err != nil {
		return o, err
	}

	nowStr := e.now().UTC().Format(time.RFC3339)
	var stampColumn string
	switch target {
	case domain.StatusActive:
		stampColumn = "accepted_at"
		o.AcceptedAt = &nowStr
	case domain.StatusDeclined:
		stampColumn = "declined_at"
		o.DeclinedAt = &nowStr
	case domain.StatusCompleted:
		stampColumn = "completed_at"
		o.CompletedAt = &nowStr
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()

	from := o.Status
	o.Status = lc.Current()
	if err := e.Repo.UpdateOrderStatusTx(ctx, tx, o.ID, o.Status, stampColumn, nowStr); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "order.status.changed", "order", o.ID, events.EventPayload{
		"from": from,
		"to":   o.Status,
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	return o, nil
}

func (e Engine) AcceptOrder(ctx context.Context, id string) (domain.Order, error) {
	return e.SetOrderStatus(ctx, id, domain.StatusActive)
}

func (e Engine) DeclineOrder(ctx context.Context, id string) (domain.Order, error) {
	return e.SetOrderStatus(ctx, id, domain.StatusDeclined)
}

func (e Engine) CompleteOrder(ctx context.Context, id string) (domain.Order, error) {
	return e.SetOrderStatus(ctx, id, domain.StatusCompleted)
}

func (e Engine) DeleteOrder(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteOrderTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "order.deleted", "order", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListPartition returns the orders belonging to one display partition.
func (e Engine) ListPartition(ctx context.Context, p domain.Partition) ([]domain.Order, error) {
	switch p {
	case domain.PartitionOpen:
		return e.Repo.ListOrders(ctx, domain.StatusOpen)
	case domain.PartitionActive:
		return e.Repo.ListOrders(ctx, domain.StatusActive)
	case domain.PartitionArchived:
		return e.Repo.ListOrders(ctx, domain.StatusCompleted, domain.StatusDeclined)
	default:
		return nil, fmt.Errorf("unknown partition %q", p)
	}
}

func (e Engine) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	counts, err := e.Repo.CountOrdersByStatus(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	samples, scripts, apiCost, researchCost, err := e.Repo.ArtifactTotals(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return domain.DashboardStats{
		TotalOrders:       total,
		OpenOrders:        counts[domain.StatusOpen],
		ActiveOrders:      counts[domain.StatusActive],
		CompletedOrders:   counts[domain.StatusCompleted],
		DeclinedOrders:    counts[domain.StatusDeclined],
		TotalSamples:      samples,
		TotalScripts:      scripts,
		APICostTotal:      apiCost,
		ResearchCostTotal: researchCost,
	}, nil
}

// ArtifactCreateOptions are parameters for recording a new artifact.
type ArtifactCreateOptions struct {
	OrderID string
	Title   string
	Body    string
	Quality domain.QualityTier
}

// CreateArtifact records a deliverable against an order. Open orders take
// samples, active orders take scripts; archived orders take nothing.
func (e Engine) CreateArtifact(ctx context.Context, opts ArtifactCreateOptions) (domain.Artifact, error) {
	if e.Config == nil {
		return domain.Artifact{}, errors.New("config not loaded")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Artifact{}, errors.New("title is required")
	}
	if !opts.Quality.Valid() {
		return domain.Artifact{}, fmt.Errorf("unknown quality tier %q", opts.Quality)
	}
	o, err := e.Repo.GetOrder(ctx, opts.OrderID)
	if err != nil {
		return domain.Artifact{}, err
	}
	if o.Partition() == domain.PartitionArchived {
		return domain.Artifact{}, fmt.Errorf("order %s is archived; no artifacts can be added", o.ID)
	}
	now := e.now()
	a := domain.Artifact{
		ID:        uuid.New().String(),
		OrderID:   o.ID,
		Kind:      domain.KindForStatus(o.Status),
		Title:     strings.TrimSpace(opts.Title),
		Body:      opts.Body,
		Quality:   opts.Quality,
		Week:      domain.WeekKey(now),
		CreatedAt: now.UTC().Format(time.RFC3339),
		APICost:   e.Config.TierCost(opts.Quality),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Artifact{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertArtifactTx(ctx, tx, a); err != nil {
		return domain.Artifact{}, fmt.Errorf("insert artifact: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "artifact.created", "artifact", a.ID, events.EventPayload{
		"order_id": a.OrderID,
		"kind":     a.Kind,
		"quality":  a.Quality,
	}); err != nil {
		return domain.Artifact{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Artifact{}, err
	}
	return a, nil
}

// AddResearchCall tracks one research API call against a script artifact.
// Cost falls back to the configured per-call rate when zero.
func (e Engine) AddResearchCall(ctx context.Context, artifactID string, cost float64) (domain.Artifact, error) {
	if cost == 0 && e.Config != nil {
		cost = e.Config.Research.CallCost
	}
	a, err := e.Repo.GetArtifact(ctx, artifactID)
	if err != nil {
		return a, err
	}
	if a.Kind != domain.KindScript {
		return a, fmt.Errorf("artifact %s is not a script", artifactID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.AddResearchCallTx(ctx, tx, artifactID, cost); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "artifact.research_call", "artifact", artifactID, events.EventPayload{"cost": cost}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return e.Repo.GetArtifact(ctx, artifactID)
}

// ArtifactsByWeek groups an order's artifacts into calendar-week blocks,
// newest week first.
func (e Engine) ArtifactsByWeek(ctx context.Context, orderID string) ([]domain.WeekGroup, error) {
	if _, err := e.Repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	items, err := e.Repo.ListArtifacts(ctx, orderID, "")
	if err != nil {
		return nil, err
	}
	var groups []domain.WeekGroup
	for _, a := range items {
		if len(groups) == 0 || groups[len(groups)-1].Week != a.Week {
			groups = append(groups, domain.WeekGroup{Week: a.Week})
		}
		groups[len(groups)-1].Artifacts = append(groups[len(groups)-1].Artifacts, a)
	}
	return groups, nil
}
