package engine

import (
	"context"
	"io"
	"time"

	"demandas/internal/chart"
	"demandas/internal/domain"
	"demandas/internal/export"
	"demandas/internal/report"
	"demandas/internal/week"
)

func (e Engine) aggregator() report.Aggregator {
	return report.New(e.Calendar)
}

// WeekReport aggregates one week over a fresh snapshot.
func (e Engine) WeekReport(ctx context.Context, k week.Key) (report.WeekBucket, error) {
	demands, err := e.Repo.ListDemandas(ctx)
	if err != nil {
		return report.WeekBucket{}, err
	}
	return e.aggregator().Aggregate(demands, k)
}

// PeriodReport aggregates every week touching ref's month, most recent first.
func (e Engine) PeriodReport(ctx context.Context, ref time.Time) (report.Period, error) {
	p, _, err := e.periodSnapshot(ctx, ref)
	return p, err
}

// RangeReport aggregates every week touching from..to.
func (e Engine) RangeReport(ctx context.Context, from, to time.Time) (report.Period, error) {
	demands, err := e.Repo.ListDemandas(ctx)
	if err != nil {
		return report.Period{}, err
	}
	return e.aggregator().Between(demands, from, to)
}

func (e Engine) periodSnapshot(ctx context.Context, ref time.Time) (report.Period, []domain.Demanda, error) {
	demands, err := e.Repo.ListDemandas(ctx)
	if err != nil {
		return report.Period{}, nil, err
	}
	p, err := e.aggregator().Month(demands, ref)
	return p, demands, err
}

// ExportPeriodXLSX writes the month comparison of ref as a workbook.
func (e Engine) ExportPeriodXLSX(ctx context.Context, w io.Writer, ref time.Time) error {
	p, demands, err := e.periodSnapshot(ctx, ref)
	if err != nil {
		return err
	}
	return export.WritePeriodXLSX(w, p, demands, e.aggregator())
}

// PeriodChartSVG renders the adherence chart of ref's month.
func (e Engine) PeriodChartSVG(ctx context.Context, ref time.Time) (string, error) {
	p, err := e.PeriodReport(ctx, ref)
	if err != nil {
		return "", err
	}
	return chart.AdherenceSVG(p.Weeks, e.chartOptions()), nil
}

func (e Engine) chartOptions() *chart.Options {
	opts := &chart.Options{Title: "Aderência semanal"}
	if e.Config == nil {
		return opts
	}
	c := e.Config.Report.Chart
	opts.BarWidth = c.BarWidth
	opts.Height = c.Height
	opts.HighColor = c.Colors[chart.BandHigh]
	opts.MediumColor = c.Colors[chart.BandMedium]
	opts.LowColor = c.Colors[chart.BandLow]
	return opts
}

// Today is the current instant in the calendar location.
func (e Engine) Today() time.Time {
	return e.now().In(e.Calendar.Location())
}

// ResolveReference parses a YYYY-MM-DD reference date as midnight in the
// calendar location. Blank means today.
func (e Engine) ResolveReference(s string) (time.Time, error) {
	if s == "" {
		return e.Today(), nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, domain.NewValidationError("ref", "%v", err)
	}
	return d.In(e.Calendar.Location()), nil
}
