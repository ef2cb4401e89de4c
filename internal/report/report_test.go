package report

import (
	"errors"
	"testing"
	"time"

	"demandas/internal/domain"
	"demandas/internal/week"
)

var agg = New(week.NewCalendar(time.UTC))

func date(y int, m time.Month, d int) *domain.Date {
	return &domain.Date{Year: y, Month: m, Day: d}
}

func at(y int, m time.Month, d, h int) *time.Time {
	t := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return &t
}

func mustKey(t *testing.T, s string) week.Key {
	t.Helper()
	k, err := week.ParseKey(s)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestScenarioAPlannedPending(t *testing.T) {
	demands := []domain.Demanda{{ID: 1, Nome: "Fechamento", DataPrevista: date(2025, 1, 13)}}
	b, err := agg.Aggregate(demands, mustKey(t, "2025-W03"))
	if err != nil {
		t.Fatal(err)
	}
	if b.PlannedCount != 1 || b.PendingCount != 1 || b.AdherencePercent != 0 {
		t.Fatalf("unexpected bucket: %+v", b)
	}
	if len(b.CompletedMembers) != 0 {
		t.Fatalf("expected no completed members")
	}
}

func TestScenarioBConcludedInWeek(t *testing.T) {
	demands := []domain.Demanda{{ID: 1, Nome: "Fechamento", DataPrevista: date(2025, 1, 13), DataConclusao: at(2025, 1, 15, 10)}}
	b, err := agg.Aggregate(demands, mustKey(t, "2025-W03"))
	if err != nil {
		t.Fatal(err)
	}
	if b.AdherencePercent != 100 || b.PendingCount != 0 {
		t.Fatalf("unexpected bucket: %+v", b)
	}
	if len(b.CompletedMembers) != 1 || b.CompletedMembers[0].ID != 1 {
		t.Fatalf("expected demanda 1 in completed members, got %+v", b.CompletedMembers)
	}
}

func TestCompletedFollowsConclusionWeek(t *testing.T) {
	demands := []domain.Demanda{{ID: 1, Nome: "Atrasada", DataPrevista: date(2025, 1, 13), DataConclusao: at(2025, 1, 28, 9)}}
	planned, _ := agg.Aggregate(demands, mustKey(t, "2025-W03"))
	if planned.CompletedCount != 0 {
		t.Fatalf("planned week must not count the late conclusion")
	}
	if planned.AdherencePercent != 100 {
		t.Fatalf("planned-and-concluded counts toward adherence, got %d", planned.AdherencePercent)
	}
	late, _ := agg.Aggregate(demands, mustKey(t, "2025-W05"))
	if late.CompletedCount != 1 || late.PlannedCount != 0 || late.AdherencePercent != 0 {
		t.Fatalf("unexpected late bucket: %+v", late)
	}
}

func TestUndatedDemandsAreNeverPlanned(t *testing.T) {
	demands := []domain.Demanda{
		{ID: 1, Nome: "Sem data"},
		{ID: 2, Nome: "Sem data, concluída", DataConclusao: at(2025, 1, 14, 8)},
	}
	b, _ := agg.Aggregate(demands, mustKey(t, "2025-W03"))
	if b.PlannedCount != 0 || b.PendingCount != 0 {
		t.Fatalf("undated demandas must not be planned: %+v", b)
	}
	if b.CompletedCount != 1 {
		t.Fatalf("concluded undated demanda still counts as completed, got %d", b.CompletedCount)
	}
}

func TestWeekBoundaries(t *testing.T) {
	demands := []domain.Demanda{
		{ID: 1, Nome: "segunda", DataPrevista: date(2025, 1, 13)},
		{ID: 2, Nome: "domingo", DataPrevista: date(2025, 1, 19)},
		{ID: 3, Nome: "domingo anterior", DataPrevista: date(2025, 1, 12)},
		{ID: 4, Nome: "segunda seguinte", DataPrevista: date(2025, 1, 20)},
		{ID: 5, Nome: "concluída domingo à noite", DataConclusao: func() *time.Time {
			t := time.Date(2025, 1, 19, 23, 59, 59, 999999999, time.UTC)
			return &t
		}()},
	}
	b, _ := agg.Aggregate(demands, mustKey(t, "2025-W03"))
	if b.PlannedCount != 2 {
		t.Fatalf("expected monday and sunday only, got %d", b.PlannedCount)
	}
	if b.CompletedCount != 1 {
		t.Fatalf("late sunday conclusion belongs to the week, got %d", b.CompletedCount)
	}
}

func TestPlannedDateUsesCalendarLocation(t *testing.T) {
	brt := New(week.NewCalendar(time.FixedZone("BRT", -3*60*60)))
	demands := []domain.Demanda{{ID: 1, Nome: "x", DataPrevista: date(2025, 1, 19)}}
	b, err := brt.Aggregate(demands, mustKey(t, "2025-W03"))
	if err != nil {
		t.Fatal(err)
	}
	if b.PlannedCount != 1 {
		t.Fatalf("sunday planned date must stay in its week regardless of offset")
	}
}

func TestAdherenceRounding(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{1, 200, 1},
		{1, 400, 0},
		{3, 8, 38},
		{5, 5, 100},
		{7, 5, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.done, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestAdherenceBounds(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for done := 0; done <= total; done++ {
			p := Percent(done, total)
			if p < 0 || p > 100 {
				t.Fatalf("Percent(%d, %d) = %d out of bounds", done, total, p)
			}
		}
	}
}

func TestMalformedKey(t *testing.T) {
	_, err := agg.Aggregate(nil, week.Key{Year: 2025, Week: 60})
	if !errors.Is(err, week.ErrMalformedKey) {
		t.Fatalf("expected malformed key, got %v", err)
	}
	_, err = agg.AggregateKey(nil, "2025-3")
	if !errors.Is(err, week.ErrMalformedKey) {
		t.Fatalf("expected malformed key, got %v", err)
	}
}

func TestEmptySnapshot(t *testing.T) {
	b, err := agg.Aggregate(nil, mustKey(t, "2025-W03"))
	if err != nil {
		t.Fatal(err)
	}
	if b.PendingMembers == nil || b.CompletedMembers == nil {
		t.Fatalf("member slices must be non-nil")
	}
	if b.AdherencePercent != 0 {
		t.Fatalf("expected 0, got %d", b.AdherencePercent)
	}
}

func TestMonthPeriod(t *testing.T) {
	demands := []domain.Demanda{
		{ID: 1, Nome: "a", DataPrevista: date(2025, 2, 3), DataConclusao: at(2025, 2, 4, 10)},
		{ID: 2, Nome: "b", DataPrevista: date(2025, 2, 5)},
		{ID: 3, Nome: "c", DataPrevista: date(2025, 2, 26), DataConclusao: at(2025, 2, 27, 10)},
		{ID: 4, Nome: "d", DataPrevista: date(2025, 1, 27)},
		{ID: 5, Nome: "e", DataPrevista: date(2025, 3, 10)},
	}
	p, err := agg.Month(demands, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if p.Label != "2025-02" {
		t.Fatalf("unexpected label %q", p.Label)
	}
	if len(p.Weeks) != 5 || p.Weeks[0].Week.String() != "2025-W09" || p.Weeks[4].Week.String() != "2025-W05" {
		t.Fatalf("unexpected weeks: %+v", p.Weeks)
	}
	// W05 (Jan 27) holds d, W06 holds a and b, W09 holds c; March 10 is outside.
	if p.Totals.Planned != 4 || p.Totals.Pending != 2 || p.Totals.Completed != 2 || p.Totals.PlannedDone != 2 {
		t.Fatalf("unexpected totals: %+v", p.Totals)
	}
	if p.Totals.AdherencePercent != 50 {
		t.Fatalf("expected 50%%, got %d", p.Totals.AdherencePercent)
	}
	w06 := p.Weeks[3]
	if w06.Week.String() != "2025-W06" || w06.AdherencePercent != 50 || w06.PlannedDone() != 1 {
		t.Fatalf("unexpected W06 bucket: %+v", w06)
	}
}

func TestBetween(t *testing.T) {
	p, err := agg.Between(nil, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Weeks) != 2 || p.Label != "2025-01-06..2025-01-19" {
		t.Fatalf("unexpected period: %+v", p)
	}
}

func TestClassify(t *testing.T) {
	onTime := agg.Classify(domain.Demanda{DataPrevista: date(2025, 1, 15), DataConclusao: at(2025, 1, 13, 9)})
	if onTime.OnTime == nil || !*onTime.OnTime {
		t.Fatalf("expected on time: %+v", onTime)
	}
	late := agg.Classify(domain.Demanda{DataPrevista: date(2025, 1, 15), DataConclusao: at(2025, 1, 20, 9)})
	if late.OnTime == nil || *late.OnTime {
		t.Fatalf("expected late: %+v", late)
	}
	if late.PlannedWeek.String() != "2025-W03" || late.CompletedWeek.String() != "2025-W04" {
		t.Fatalf("unexpected weeks: %+v", late)
	}
	pending := agg.Classify(domain.Demanda{DataPrevista: date(2025, 1, 15)})
	if pending.OnTime != nil || pending.CompletedWeek != nil || pending.State != domain.StatePending {
		t.Fatalf("unexpected pending placement: %+v", pending)
	}
	undated := agg.Classify(domain.Demanda{})
	if undated.PlannedWeek != nil {
		t.Fatalf("undated demanda has no planned week")
	}
}
