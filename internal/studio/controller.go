package studio

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	studiosdk "scriptstudio/sdk/go"
)

// Controller runs order mutations from the client side. Every action
// re-resolves its target against the current store, performs a single
// backend call, and reloads the snapshot.
type Controller struct {
	Store    *Store
	Notifier Notifier
	Logger   *log.Logger
}

func NewController(store *Store, notifier Notifier, logger *log.Logger) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{Store: store, Notifier: notifier, Logger: logger}
}

// Create validates inputs locally and sends the order to the backend.
// Blank fields never reach the network.
func (c *Controller) Create(ctx context.Context, title, description string) (studiosdk.Order, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		err := ValidationError{Field: "title", Reason: "is required"}
		c.Notifier.Error("order not created", "reason", err.Error())
		return studiosdk.Order{}, err
	}
	if description == "" {
		err := ValidationError{Field: "description", Reason: "is required"}
		c.Notifier.Error("order not created", "reason", err.Error())
		return studiosdk.Order{}, err
	}
	o, err := c.Store.Gateway.CreateOrder(ctx, title, description)
	if err != nil {
		c.Notifier.Error("order not created", "err", err)
		return studiosdk.Order{}, err
	}
	if err := c.Store.LoadAll(ctx); err != nil {
		c.Logger.Warn("reload after create failed", "err", err)
	}
	c.Notifier.Success("order created", "id", o.ID)
	return o, nil
}

// Accept moves an open order into the active workflow.
func (c *Controller) Accept(ctx context.Context, id string) error {
	return c.transition(ctx, id, "open", "ACTIVE", "accepted")
}

// Decline archives an open order without work.
func (c *Controller) Decline(ctx context.Context, id string) error {
	return c.transition(ctx, id, "open", "DECLINED", "declined")
}

// Complete archives an active order as delivered.
func (c *Controller) Complete(ctx context.Context, id string) error {
	return c.transition(ctx, id, "active", "COMPLETED", "completed")
}

// transition re-resolves the order against the partition it must leave.
// An id that already moved on, or never existed, fails here without a
// backend call.
func (c *Controller) transition(ctx context.Context, id, source, target, verb string) error {
	if _, ok := c.Store.FindIn(source, id); !ok {
		err := NotFoundError{Kind: source + " order", ID: id}
		c.Notifier.Warn("order not "+verb, "reason", err.Error())
		return err
	}
	if _, err := c.Store.Gateway.SetOrderStatus(ctx, id, target); err != nil {
		c.Notifier.Error("order not "+verb, "id", id, "err", err)
		return err
	}
	if err := c.Store.LoadAll(ctx); err != nil {
		c.Logger.Warn("reload after transition failed", "err", err)
	}
	c.Notifier.Success("order "+verb, "id", id)
	return nil
}

// Delete removes an order after re-resolving it.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if _, ok := c.Store.Find(id); !ok {
		err := NotFoundError{Kind: "order", ID: id}
		c.Notifier.Warn("order not deleted", "reason", err.Error())
		return err
	}
	if err := c.Store.Gateway.DeleteOrder(ctx, id); err != nil {
		c.Notifier.Error("order not deleted", "id", id, "err", err)
		return err
	}
	if err := c.Store.LoadAll(ctx); err != nil {
		c.Logger.Warn("reload after delete failed", "err", err)
	}
	c.Notifier.Success("order deleted", "id", id)
	return nil
}
