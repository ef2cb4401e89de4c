// Package chart renders the weekly adherence comparison as an SVG bar chart.
package chart

import (
	"fmt"
	"html"
	"strings"

	"demandas/internal/report"
)

// Options control the chart geometry and palette. Zero values fall back to
// the defaults.
type Options struct {
	Title       string
	BarWidth    int
	BarGap      int
	Height      int
	FontSize    int
	FontFamily  string
	HighColor   string
	MediumColor string
	LowColor    string
	EmptyColor  string
}

func (o *Options) withDefaults() Options {
	out := Options{
		BarWidth:    48,
		BarGap:      16,
		Height:      240,
		FontSize:    11,
		FontFamily:  "sans-serif",
		HighColor:   "#2e7d32",
		MediumColor: "#f9a825",
		LowColor:    "#c62828",
		EmptyColor:  "#e0e0e0",
	}
	if o == nil {
		return out
	}
	out.Title = o.Title
	if o.BarWidth > 0 {
		out.BarWidth = o.BarWidth
	}
	if o.BarGap > 0 {
		out.BarGap = o.BarGap
	}
	if o.Height > 0 {
		out.Height = o.Height
	}
	if o.FontSize > 0 {
		out.FontSize = o.FontSize
	}
	if o.FontFamily != "" {
		out.FontFamily = o.FontFamily
	}
	if o.HighColor != "" {
		out.HighColor = o.HighColor
	}
	if o.MediumColor != "" {
		out.MediumColor = o.MediumColor
	}
	if o.LowColor != "" {
		out.LowColor = o.LowColor
	}
	if o.EmptyColor != "" {
		out.EmptyColor = o.EmptyColor
	}
	return out
}

// Adherence bands, also the keys of report.chart.colors.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Band buckets an adherence percentage: high from 80, medium from 50.
func Band(percent int) string {
	switch {
	case percent >= 80:
		return BandHigh
	case percent >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// AdherenceSVG draws one bar per bucket, oldest week on the left. Weeks with
// nothing planned get a flat placeholder bar.
func AdherenceSVG(buckets []report.WeekBucket, opts *Options) string {
	o := opts.withDefaults()

	titleHeight := 0
	if o.Title != "" {
		titleHeight = o.FontSize + 10
	}
	axisWidth := o.FontSize * 3
	labelHeight := o.FontSize*2 + 8
	plotTop := titleHeight + o.FontSize + 4
	plotHeight := o.Height
	n := len(buckets)
	width := axisWidth + o.BarGap + n*(o.BarWidth+o.BarGap)
	height := plotTop + plotHeight + labelHeight

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`+"\n", width, height))
	sb.WriteString(fmt.Sprintf(`  <style>.label{font-family:%s;font-size:%dpx;fill:#666}.value{font-family:%s;font-size:%dpx;fill:#333}.title{font-family:%s;font-size:%dpx;fill:#333;font-weight:bold}</style>`+"\n",
		o.FontFamily, o.FontSize, o.FontFamily, o.FontSize, o.FontFamily, o.FontSize+2))
	if o.Title != "" {
		sb.WriteString(fmt.Sprintf(`  <text x="%d" y="%d" class="title">%s</text>`+"\n", o.BarGap, o.FontSize+2, html.EscapeString(o.Title)))
	}

	// gridlines at 0, 50 and 100 percent
	for _, p := range []int{0, 50, 100} {
		y := plotTop + plotHeight - plotHeight*p/100
		sb.WriteString(fmt.Sprintf(`  <line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#ddd"/>`+"\n", axisWidth, y, width, y))
		sb.WriteString(fmt.Sprintf(`  <text x="%d" y="%d" class="label">%d%%</text>`+"\n", 0, y+o.FontSize/2, p))
	}

	for i := 0; i < n; i++ {
		b := buckets[n-1-i]
		x := axisWidth + o.BarGap + i*(o.BarWidth+o.BarGap)
		barHeight := plotHeight * b.AdherencePercent / 100
		color := o.EmptyColor
		if b.PlannedCount > 0 {
			color = colorFor(o, b.AdherencePercent)
		}
		if b.PlannedCount == 0 || barHeight < 2 {
			barHeight = 2
		}
		y := plotTop + plotHeight - barHeight
		key := b.Week.String()
		sb.WriteString(fmt.Sprintf(`  <rect x="%d" y="%d" width="%d" height="%d" fill="%s" data-week="%s" data-planned="%d" data-adherence="%d">`+"\n",
			x, y, o.BarWidth, barHeight, color, key, b.PlannedCount, b.AdherencePercent))
		sb.WriteString(fmt.Sprintf(`    <title>%s (%s a %s): %d%% de %d planejadas, %d concluídas na semana</title>`+"\n",
			key, b.RangeStart.Format("02/01"), b.RangeEnd.Format("02/01"), b.AdherencePercent, b.PlannedCount, b.CompletedCount))
		sb.WriteString(`  </rect>` + "\n")
		if b.PlannedCount > 0 {
			sb.WriteString(fmt.Sprintf(`  <text x="%d" y="%d" class="value">%d%%</text>`+"\n", x+2, y-3, b.AdherencePercent))
		}
		labelY := plotTop + plotHeight + o.FontSize + 2
		sb.WriteString(fmt.Sprintf(`  <text x="%d" y="%d" class="label">%s</text>`+"\n", x, labelY, key[5:]))
		sb.WriteString(fmt.Sprintf(`  <text x="%d" y="%d" class="label">%s</text>`+"\n", x, labelY+o.FontSize+2, b.RangeStart.Format("02/01")))
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

func colorFor(o Options, percent int) string {
	switch Band(percent) {
	case BandHigh:
		return o.HighColor
	case BandMedium:
		return o.MediumColor
	default:
		return o.LowColor
	}
}
