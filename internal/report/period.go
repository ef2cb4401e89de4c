package report

import (
	"time"

	"demandas/internal/domain"
	"demandas/internal/week"
)

// Totals sums a set of buckets.
type Totals struct {
	Planned          int `json:"planned"`
	Pending          int `json:"pending"`
	Completed        int `json:"completed"`
	PlannedDone      int `json:"planned_done"`
	AdherencePercent int `json:"adherence_percent"`
}

// Summarize totals buckets with the same rounding as a single week.
func Summarize(buckets []WeekBucket) Totals {
	var t Totals
	for _, b := range buckets {
		t.Planned += b.PlannedCount
		t.Pending += b.PendingCount
		t.Completed += b.CompletedCount
		t.PlannedDone += b.plannedDone
	}
	t.AdherencePercent = Percent(t.PlannedDone, t.Planned)
	return t
}

// Period is the comparison set for a reporting span, most recent week first.
type Period struct {
	Label     string       `json:"label"`
	Reference time.Time    `json:"reference"`
	Weeks     []WeekBucket `json:"weeks"`
	Totals    Totals       `json:"totals"`
}

// Month builds the period of every week touching ref's month.
func (a Aggregator) Month(demands []domain.Demanda, ref time.Time) (Period, error) {
	ref = ref.In(a.Calendar.Location())
	return a.period(demands, ref.Format("2006-01"), ref, a.Calendar.WeeksOfMonth(ref))
}

// Between builds the period of every week touching from..to.
func (a Aggregator) Between(demands []domain.Demanda, from, to time.Time) (Period, error) {
	keys := a.Calendar.WeeksBetween(from, to)
	label := from.In(a.Calendar.Location()).Format(domain.DateLayout) + ".." + to.In(a.Calendar.Location()).Format(domain.DateLayout)
	return a.period(demands, label, to, keys)
}

func (a Aggregator) period(demands []domain.Demanda, label string, ref time.Time, keys []week.Key) (Period, error) {
	buckets, err := a.AggregateAll(demands, keys)
	if err != nil {
		return Period{}, err
	}
	return Period{Label: label, Reference: ref, Weeks: buckets, Totals: Summarize(buckets)}, nil
}

// Placement locates one demanda on the week grid for drill-down views.
type Placement struct {
	PlannedWeek   *week.Key    `json:"planned_week,omitempty"`
	CompletedWeek *week.Key    `json:"completed_week,omitempty"`
	State         domain.State `json:"state"`
	// OnTime is set only for concluded demandas with a planned date: true when
	// concluded in or before the planned week.
	OnTime *bool `json:"on_time,omitempty"`
}

// Classify places d on the week grid.
func (a Aggregator) Classify(d domain.Demanda) Placement {
	p := Placement{State: d.State()}
	if d.DataPrevista != nil {
		k := a.Calendar.Key(d.DataPrevista.In(a.Calendar.Location()))
		p.PlannedWeek = &k
	}
	if d.DataConclusao != nil {
		k := a.Calendar.Key(*d.DataConclusao)
		p.CompletedWeek = &k
	}
	if p.PlannedWeek != nil && p.CompletedWeek != nil {
		onTime := !p.PlannedWeek.Before(*p.CompletedWeek)
		p.OnTime = &onTime
	}
	return p
}
