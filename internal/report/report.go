// Package report buckets demandas into weeks and computes adherence: the share
// of demandas planned for a week that have been concluded.
package report

import (
	"time"

	"demandas/internal/domain"
	"demandas/internal/week"
)

// WeekBucket is the aggregate of one week. It is computed on demand and never
// stored.
type WeekBucket struct {
	Week             week.Key         `json:"week"`
	RangeStart       time.Time        `json:"range_start"`
	RangeEnd         time.Time        `json:"range_end"`
	PlannedCount     int              `json:"planned_count"`
	PendingCount     int              `json:"pending_count"`
	CompletedCount   int              `json:"completed_count"`
	AdherencePercent int              `json:"adherence_percent"`
	PendingMembers   []domain.Demanda `json:"pending_members"`
	CompletedMembers []domain.Demanda `json:"completed_members"`

	plannedDone int
}

// Aggregator scans demanda snapshots against a calendar.
type Aggregator struct {
	Calendar week.Calendar
}

func New(cal week.Calendar) Aggregator {
	return Aggregator{Calendar: cal}
}

// Aggregate computes the bucket for k. Planned membership follows
// DataPrevista, completed membership follows DataConclusao. The only error is
// a malformed key.
func (a Aggregator) Aggregate(demands []domain.Demanda, k week.Key) (WeekBucket, error) {
	r, err := a.Calendar.Range(k)
	if err != nil {
		return WeekBucket{}, err
	}
	b := WeekBucket{
		Week:             k,
		RangeStart:       r.Start,
		RangeEnd:         r.End,
		PendingMembers:   []domain.Demanda{},
		CompletedMembers: []domain.Demanda{},
	}
	for _, d := range demands {
		if a.planned(d, r) {
			b.PlannedCount++
			if d.DataConclusao == nil {
				b.PendingMembers = append(b.PendingMembers, d)
			} else {
				b.plannedDone++
			}
		}
		if d.DataConclusao != nil && r.Contains(*d.DataConclusao) {
			b.CompletedMembers = append(b.CompletedMembers, d)
		}
	}
	b.PendingCount = len(b.PendingMembers)
	b.CompletedCount = len(b.CompletedMembers)
	b.AdherencePercent = Percent(b.plannedDone, b.PlannedCount)
	return b, nil
}

// AggregateKey parses s and aggregates it.
func (a Aggregator) AggregateKey(demands []domain.Demanda, s string) (WeekBucket, error) {
	k, err := week.ParseKey(s)
	if err != nil {
		return WeekBucket{}, err
	}
	return a.Aggregate(demands, k)
}

// AggregateAll aggregates every key, preserving the order of keys.
func (a Aggregator) AggregateAll(demands []domain.Demanda, keys []week.Key) ([]WeekBucket, error) {
	out := make([]WeekBucket, 0, len(keys))
	for _, k := range keys {
		b, err := a.Aggregate(demands, k)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (a Aggregator) planned(d domain.Demanda, r week.Range) bool {
	if d.DataPrevista == nil {
		return false
	}
	return r.Contains(d.DataPrevista.In(a.Calendar.Location()))
}

// PlannedDone is the number of planned demandas already concluded, whenever
// that happened.
func (b WeekBucket) PlannedDone() int {
	return b.plannedDone
}

// Percent returns 100*done/total rounded half-up, or 0 when total is 0.
func Percent(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return (200*done + total) / (2 * total)
}
