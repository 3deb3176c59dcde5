package domain

type Order struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status" enum:"OPEN,ACTIVE,COMPLETED,DECLINED"`
	Priority    Priority `json:"priority" enum:"LOW,MEDIUM,HIGH"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	AcceptedAt  *string  `json:"accepted_at,omitempty" format:"date-time"`
	DeclinedAt  *string  `json:"declined_at,omitempty" format:"date-time"`
	CompletedAt *string  `json:"completed_at,omitempty" format:"date-time"`
}

// Partition returns the display bucket for the order's current status.
func (o Order) Partition() Partition {
	return PartitionFor(o.Status)
}

// Artifact is a quality-tiered content deliverable (sample or script)
// produced against exactly one order.
type Artifact struct {
	ID            string       `json:"id"`
	OrderID       string       `json:"order_id"`
	Kind          ArtifactKind `json:"kind" enum:"sample,script"`
	Title         string       `json:"title"`
	Body          string       `json:"body"`
	Quality       QualityTier  `json:"quality" enum:"bronze,silver,gold"`
	Week          string       `json:"week"`
	CreatedAt     string       `json:"created_at" format:"date-time"`
	APICost       float64      `json:"api_cost"`
	ResearchCalls int          `json:"research_calls"`
	ResearchCost  float64      `json:"research_cost"`
}

// WeekGroup is one calendar week's worth of artifacts for an order.
type WeekGroup struct {
	Week      string     `json:"week"`
	Artifacts []Artifact `json:"artifacts"`
}

// DashboardStats are the aggregate counts shown on the dashboard tiles.
type DashboardStats struct {
	TotalOrders       int     `json:"total_orders"`
	OpenOrders        int     `json:"open_orders"`
	ActiveOrders      int     `json:"active_orders"`
	CompletedOrders   int     `json:"completed_orders"`
	DeclinedOrders    int     `json:"declined_orders"`
	TotalSamples      int     `json:"total_samples"`
	TotalScripts      int     `json:"total_scripts"`
	APICostTotal      float64 `json:"api_cost_total"`
	ResearchCostTotal float64 `json:"research_cost_total"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

// HandoffRecord is the value transferred between panels: a partition's
// order list frozen at publish time.
type HandoffRecord struct {
	Status Status  `json:"status"`
	Orders []Order `json:"orders"`
}
