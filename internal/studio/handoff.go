package studio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	studiosdk "scriptstudio/sdk/go"
)

// HandoffRecord is a partition's order list frozen at publish time,
// addressed to one destination panel.
type HandoffRecord struct {
	Status      string            `json:"status"`
	Orders      []studiosdk.Order `json:"orders"`
	PublishedAt string            `json:"published_at"`
}

// Handoff hands order batches between workflow panels through per-panel
// slot files. Consuming a slot never clears it; the record stays until
// the next publish overwrites it.
type Handoff struct {
	Dir    string
	Panels []int
	Logger *log.Logger
	Now    func() time.Time
}

func NewHandoff(workspace string, panels []int, logger *log.Logger) *Handoff {
	if logger == nil {
		logger = log.Default()
	}
	return &Handoff{
		Dir:    filepath.Join(workspace, ".scriptstudio", "handoff"),
		Panels: panels,
		Logger: logger,
		Now:    time.Now,
	}
}

func (h *Handoff) slotPath(panel int) string {
	return filepath.Join(h.Dir, fmt.Sprintf("panel_%d.json", panel))
}

func (h *Handoff) validPanel(panel int) bool {
	for _, p := range h.Panels {
		if p == panel {
			return true
		}
	}
	return false
}

// Publish writes a record into a panel's slot. Only the two working
// statuses can be handed off; an empty order list is rejected and the
// previous record stays untouched.
func (h *Handoff) Publish(panel int, status string, orders []studiosdk.Order) error {
	if !h.validPanel(panel) {
		return fmt.Errorf("unknown hand-off panel %d", panel)
	}
	if status != "OPEN" && status != "ACTIVE" {
		return fmt.Errorf("hand-off status must be OPEN or ACTIVE, got %q", status)
	}
	if len(orders) == 0 {
		h.Logger.Warn("refusing to publish empty order list", "panel", panel, "status", status)
		return fmt.Errorf("nothing to hand off for panel %d", panel)
	}
	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return err
	}
	record := HandoffRecord{
		Status:      status,
		Orders:      orders,
		PublishedAt: h.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp := h.slotPath(panel) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, h.slotPath(panel)); err != nil {
		return err
	}
	h.Logger.Info("hand-off published", "panel", panel, "status", status, "orders", len(orders))
	return nil
}

// Consume reads a panel's slot without clearing it.
func (h *Handoff) Consume(panel int) (HandoffRecord, error) {
	if !h.validPanel(panel) {
		return HandoffRecord{}, fmt.Errorf("unknown hand-off panel %d", panel)
	}
	data, err := os.ReadFile(h.slotPath(panel))
	if err != nil {
		if os.IsNotExist(err) {
			return HandoffRecord{}, NotFoundError{Kind: "hand-off record for panel", ID: fmt.Sprint(panel)}
		}
		return HandoffRecord{}, err
	}
	var record HandoffRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return HandoffRecord{}, fmt.Errorf("corrupt hand-off slot %d: %w", panel, err)
	}
	return record, nil
}
