package server

import (
	"encoding/json"

	"scriptstudio/internal/domain"
)

// Request payloads

type CreateOrderRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    *string `json:"priority,omitempty" enum:"LOW,MEDIUM,HIGH"`
}

type SetOrderStatusRequest struct {
	Status string `json:"status" enum:"ACTIVE,COMPLETED,DECLINED"`
}

type CreateArtifactRequest struct {
	Title   string `json:"title"`
	Body    string `json:"body,omitempty"`
	Quality string `json:"quality" enum:"bronze,silver,gold"`
}

type ResearchCallRequest struct {
	Cost float64 `json:"cost,omitempty"`
}

// Response payloads

type OrderResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status" enum:"OPEN,ACTIVE,COMPLETED,DECLINED"`
	Partition   string  `json:"partition" enum:"open,active,archived"`
	Priority    string  `json:"priority" enum:"LOW,MEDIUM,HIGH"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	AcceptedAt  *string `json:"accepted_at,omitempty" format:"date-time"`
	DeclinedAt  *string `json:"declined_at,omitempty" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type ArtifactResponse struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"order_id"`
	Kind          string  `json:"kind" enum:"sample,script"`
	Title         string  `json:"title"`
	Body          string  `json:"body,omitempty"`
	Quality       string  `json:"quality" enum:"bronze,silver,gold"`
	Week          string  `json:"week"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	APICost       float64 `json:"api_cost"`
	ResearchCalls int     `json:"research_calls"`
	ResearchCost  float64 `json:"research_cost"`
}

type WeekGroupResponse struct {
	Week      string             `json:"week"`
	Artifacts []ArtifactResponse `json:"artifacts"`
}

type DashboardResponse struct {
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

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// Conversion helpers

func orderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		Status:      string(o.Status),
		Partition:   string(o.Partition()),
		Priority:    string(o.Priority),
		CreatedAt:   o.CreatedAt,
		AcceptedAt:  o.AcceptedAt,
		DeclinedAt:  o.DeclinedAt,
		CompletedAt: o.CompletedAt,
	}
}

func mapOrders(items []domain.Order) []OrderResponse {
	res := []OrderResponse{}
	for _, o := range items {
		res = append(res, orderResponse(o))
	}
	return res
}

func artifactResponse(a domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		ID:            a.ID,
		OrderID:       a.OrderID,
		Kind:          string(a.Kind),
		Title:         a.Title,
		Body:          a.Body,
		Quality:       string(a.Quality),
		Week:          a.Week,
		CreatedAt:     a.CreatedAt,
		APICost:       a.APICost,
		ResearchCalls: a.ResearchCalls,
		ResearchCost:  a.ResearchCost,
	}
}

func mapWeekGroups(groups []domain.WeekGroup) []WeekGroupResponse {
	res := []WeekGroupResponse{}
	for _, g := range groups {
		wg := WeekGroupResponse{Week: g.Week, Artifacts: []ArtifactResponse{}}
		for _, a := range g.Artifacts {
			wg.Artifacts = append(wg.Artifacts, artifactResponse(a))
		}
		res = append(res, wg)
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}
