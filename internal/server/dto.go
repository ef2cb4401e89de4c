package server

import (
	"encoding/json"
	"time"

	"demandas/internal/domain"
	"demandas/internal/report"
	"demandas/internal/week"
)

// Request payloads

type CreateDemandaRequest struct {
	Nome          string  `json:"nome" minLength:"1"`
	Descricao     string  `json:"descricao,omitempty"`
	ResponsavelID *int64  `json:"responsavel_id,omitempty"`
	DataPrevista  *string `json:"data_prevista,omitempty" example:"2025-02-05"`
}

// UpdateDemandaRequest is a partial edit. responsavel_id 0 and an empty
// data_prevista clear the field.
type UpdateDemandaRequest struct {
	Nome          *string `json:"nome,omitempty"`
	Descricao     *string `json:"descricao,omitempty"`
	ResponsavelID *int64  `json:"responsavel_id,omitempty"`
	DataPrevista  *string `json:"data_prevista,omitempty" example:"2025-02-05"`
}

type CreateResponsavelRequest struct {
	Nome  string `json:"nome" minLength:"1"`
	Email string `json:"email,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Response payloads

type DemandaResponse struct {
	ID              int64   `json:"id"`
	Nome            string  `json:"nome"`
	Descricao       string  `json:"descricao,omitempty"`
	ResponsavelID   *int64  `json:"responsavel_id,omitempty"`
	ResponsavelNome string  `json:"responsavel_nome,omitempty"`
	DataPrevista    *string `json:"data_prevista,omitempty"`
	DataConclusao   *string `json:"data_conclusao,omitempty" format:"date-time"`
	State           string  `json:"state" enum:"pending,completed"`
	PlannedWeek     *string `json:"planned_week,omitempty"`
	CompletedWeek   *string `json:"completed_week,omitempty"`
	OnTime          *bool   `json:"on_time,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

type paginatedDemandas struct {
	Items  []DemandaResponse `json:"items"`
	Filter string            `json:"filter"`
}

type WeekRangeResponse struct {
	Week  string `json:"week" example:"2025-W06"`
	Start string `json:"start" format:"date-time"`
	End   string `json:"end" format:"date-time"`
}

type WeekBucketResponse struct {
	Week             string            `json:"week" example:"2025-W06"`
	RangeStart       string            `json:"range_start" format:"date-time"`
	RangeEnd         string            `json:"range_end" format:"date-time"`
	PlannedCount     int               `json:"planned_count"`
	PendingCount     int               `json:"pending_count"`
	CompletedCount   int               `json:"completed_count"`
	PlannedDone      int               `json:"planned_done"`
	AdherencePercent int               `json:"adherence_percent"`
	PendingMembers   []DemandaResponse `json:"pending_members,omitempty"`
	CompletedMembers []DemandaResponse `json:"completed_members,omitempty"`
}

type PeriodResponse struct {
	Label     string               `json:"label" example:"2025-02"`
	Reference string               `json:"reference" example:"2025-02-15"`
	Weeks     []WeekBucketResponse `json:"weeks"`
	Totals    report.Totals        `json:"totals"`
}

type ResponsavelResponse struct {
	ID        int64  `json:"id"`
	Nome      string `json:"nome"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Key       string `json:"key,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Mapping helpers

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func demandaResponse(d domain.Demanda, place report.Placement) DemandaResponse {
	out := DemandaResponse{
		ID:              d.ID,
		Nome:            d.Nome,
		Descricao:       d.Descricao,
		ResponsavelID:   d.ResponsavelID,
		ResponsavelNome: d.ResponsavelNome,
		State:           string(d.State()),
		OnTime:          place.OnTime,
		CreatedAt:       formatTime(d.CreatedAt),
		UpdatedAt:       formatTime(d.UpdatedAt),
	}
	if d.DataPrevista != nil {
		s := d.DataPrevista.String()
		out.DataPrevista = &s
	}
	if d.DataConclusao != nil {
		s := formatTime(*d.DataConclusao)
		out.DataConclusao = &s
	}
	out.PlannedWeek = keyString(place.PlannedWeek)
	out.CompletedWeek = keyString(place.CompletedWeek)
	return out
}

func keyString(k *week.Key) *string {
	if k == nil {
		return nil
	}
	s := k.String()
	return &s
}

func (h handlers) mapDemandas(ds []domain.Demanda) []DemandaResponse {
	agg := report.New(h.e.Calendar)
	out := make([]DemandaResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, demandaResponse(d, agg.Classify(d)))
	}
	return out
}

func (h handlers) demanda(d domain.Demanda) DemandaResponse {
	return demandaResponse(d, report.New(h.e.Calendar).Classify(d))
}

func weekRangeResponse(k week.Key, r week.Range) WeekRangeResponse {
	return WeekRangeResponse{Week: k.String(), Start: r.Start.Format(time.RFC3339Nano), End: r.End.Format(time.RFC3339Nano)}
}

func (h handlers) bucketResponse(b report.WeekBucket, members bool) WeekBucketResponse {
	out := WeekBucketResponse{
		Week:             b.Week.String(),
		RangeStart:       b.RangeStart.Format(time.RFC3339Nano),
		RangeEnd:         b.RangeEnd.Format(time.RFC3339Nano),
		PlannedCount:     b.PlannedCount,
		PendingCount:     b.PendingCount,
		CompletedCount:   b.CompletedCount,
		PlannedDone:      b.PlannedDone(),
		AdherencePercent: b.AdherencePercent,
	}
	if members {
		out.PendingMembers = h.mapDemandas(b.PendingMembers)
		out.CompletedMembers = h.mapDemandas(b.CompletedMembers)
	}
	return out
}

func (h handlers) periodResponse(p report.Period, members bool) PeriodResponse {
	out := PeriodResponse{
		Label:     p.Label,
		Reference: p.Reference.Format(domain.DateLayout),
		Weeks:     make([]WeekBucketResponse, 0, len(p.Weeks)),
		Totals:    p.Totals,
	}
	for _, b := range p.Weeks {
		out.Weeks = append(out.Weeks, h.bucketResponse(b, members))
	}
	return out
}

func responsavelResponse(p domain.Responsavel) ResponsavelResponse {
	return ResponsavelResponse{ID: p.ID, Nome: p.Nome, Email: p.Email, CreatedAt: formatTime(p.CreatedAt)}
}

func apiKeyResponse(k domain.APIKey, raw string) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: formatTime(k.CreatedAt), Key: raw}
}

func eventResponse(e domain.Event) EventResponse {
	out := EventResponse{
		ID:         e.ID,
		TS:         formatTime(e.TS),
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
	}
	if e.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil && len(payload) > 0 {
			out.Payload = payload
		}
	}
	return out
}

func mapEvents(evts []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(evts))
	for _, e := range evts {
		out = append(out, eventResponse(e))
	}
	return out
}
