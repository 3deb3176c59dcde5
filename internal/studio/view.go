package studio

import (
	"fmt"

	studiosdk "scriptstudio/sdk/go"
)

// Workflow identifies which order workflow a panel is showing: sample
// production for open orders or script production for active ones.
type Workflow string

const (
	WorkflowSamples Workflow = "samples"
	WorkflowScripts Workflow = "scripts"
)

// workflowPartition maps a workflow to the partition its panel shows.
func workflowPartition(w Workflow) string {
	if w == WorkflowScripts {
		return "active"
	}
	return "open"
}

// PanelSource supplies a partition's orders for panel rendering. *Store
// satisfies it.
type PanelSource interface {
	Partition(p string) []studiosdk.Order
}

// ViewSwitcher tracks which workflow view is active along with the
// user's tier and artifact selection. Switching views always clears the
// selection so stale picks cannot leak across workflows, and reloads
// the panel's order list from the snapshot.
type ViewSwitcher struct {
	source  PanelSource
	handoff *Handoff
	panels  map[Workflow]int

	active           Workflow
	orders           []studiosdk.Order
	selectedTier     string
	selectedArtifact string
}

// NewViewSwitcher starts with the given workflow active, or with no
// active view when the argument is empty. The source feeds each panel's
// order list; nil leaves the panels empty.
func NewViewSwitcher(source PanelSource, initial Workflow) *ViewSwitcher {
	v := &ViewSwitcher{source: source, active: initial}
	if initial != "" {
		v.orders = v.loadPanel(initial)
	}
	return v
}

// UseHandoff adds a fallback for panels whose partition snapshot is
// empty: the workflow's hand-off slot is consumed instead.
func (v *ViewSwitcher) UseHandoff(h *Handoff, panels map[Workflow]int) {
	v.handoff = h
	v.panels = panels
}

// Activate switches to a workflow, resets tier and artifact selection,
// and repopulates the panel's order list.
func (v *ViewSwitcher) Activate(w Workflow) error {
	switch w {
	case WorkflowSamples, WorkflowScripts:
	default:
		return fmt.Errorf("unknown workflow %q", w)
	}
	v.active = w
	v.selectedTier = ""
	v.selectedArtifact = ""
	v.orders = v.loadPanel(w)
	return nil
}

func (v *ViewSwitcher) loadPanel(w Workflow) []studiosdk.Order {
	if v.source != nil {
		if items := v.source.Partition(workflowPartition(w)); len(items) > 0 {
			return items
		}
	}
	if v.handoff != nil {
		if panel, ok := v.panels[w]; ok {
			if record, err := v.handoff.Consume(panel); err == nil {
				return record.Orders
			}
		}
	}
	return nil
}

// Active returns the current workflow, empty when none is active.
func (v *ViewSwitcher) Active() Workflow { return v.active }

// Orders returns the active panel's order list as loaded by the last
// Activate call.
func (v *ViewSwitcher) Orders() []studiosdk.Order { return v.orders }

// IsActive reports whether w is the one active workflow. At most one
// view can be active at a time.
func (v *ViewSwitcher) IsActive(w Workflow) bool { return v.active == w }

// Indicators returns the active flag per workflow for rendering.
func (v *ViewSwitcher) Indicators() map[Workflow]bool {
	return map[Workflow]bool{
		WorkflowSamples: v.active == WorkflowSamples,
		WorkflowScripts: v.active == WorkflowScripts,
	}
}

// SelectTier records the quality tier pick within the active view.
func (v *ViewSwitcher) SelectTier(tier string) {
	v.selectedTier = tier
}

// SelectArtifact records the artifact pick within the active view.
func (v *ViewSwitcher) SelectArtifact(id string) {
	v.selectedArtifact = id
}

// SelectedTier returns the picked tier, empty when none.
func (v *ViewSwitcher) SelectedTier() string { return v.selectedTier }

// SelectedArtifact returns the picked artifact id or a selection error.
func (v *ViewSwitcher) SelectedArtifact() (string, error) {
	if v.selectedArtifact == "" {
		return "", SelectionRequiredError{What: "artifact"}
	}
	return v.selectedArtifact, nil
}
