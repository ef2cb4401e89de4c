package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"demandas/internal/chart"
	"demandas/internal/domain"
	"demandas/internal/report"
	"demandas/internal/week"
)

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func adherence(p int) string {
	s := fmt.Sprintf("%d%%", p)
	switch chart.Band(p) {
	case chart.BandHigh:
		return color.New(color.FgGreen).Sprint(s)
	case chart.BandMedium:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return color.New(color.FgRed).Sprint(s)
	}
}

func stateLabel(s domain.State) string {
	if s == domain.StateCompleted {
		return color.New(color.FgGreen).Sprint("concluída")
	}
	return color.New(color.FgYellow).Sprint("pendente")
}

func printDemandas(ds []domain.Demanda, agg report.Aggregator) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Nome", "Responsável", "Prevista", "Semana", "Conclusão", "Situação"})
	for _, d := range ds {
		place := agg.Classify(d)
		planned, plannedWeek, concluded := "-", "-", "-"
		if d.DataPrevista != nil {
			planned = d.DataPrevista.String()
		}
		if place.PlannedWeek != nil {
			plannedWeek = place.PlannedWeek.String()
		}
		if d.DataConclusao != nil {
			concluded = d.DataConclusao.In(agg.Calendar.Location()).Format("2006-01-02 15:04")
		}
		resp := d.ResponsavelNome
		if resp == "" {
			resp = "-"
		}
		tw.AppendRow(table.Row{d.ID, d.Nome, resp, planned, plannedWeek, concluded, stateLabel(d.State())})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d demandas", len(ds))})
	tw.Render()
}

func printDemanda(d domain.Demanda, agg report.Aggregator) {
	place := agg.Classify(d)
	tw := newTable()
	tw.AppendRow(table.Row{"ID", d.ID})
	tw.AppendRow(table.Row{"Nome", d.Nome})
	if d.Descricao != "" {
		tw.AppendRow(table.Row{"Descrição", d.Descricao})
	}
	if d.ResponsavelID != nil {
		tw.AppendRow(table.Row{"Responsável", fmt.Sprintf("%s (#%d)", d.ResponsavelNome, *d.ResponsavelID)})
	}
	if d.DataPrevista != nil {
		tw.AppendRow(table.Row{"Data prevista", fmt.Sprintf("%s (%s)", d.DataPrevista, place.PlannedWeek)})
	}
	if d.DataConclusao != nil {
		tw.AppendRow(table.Row{"Data conclusão", fmt.Sprintf("%s (%s)", d.DataConclusao.In(agg.Calendar.Location()).Format(time.RFC3339), place.CompletedWeek)})
	}
	tw.AppendRow(table.Row{"Situação", stateLabel(d.State())})
	if place.OnTime != nil {
		onTime := color.New(color.FgRed).Sprint("não")
		if *place.OnTime {
			onTime = color.New(color.FgGreen).Sprint("sim")
		}
		tw.AppendRow(table.Row{"No prazo", onTime})
	}
	tw.AppendRow(table.Row{"Criada", d.CreatedAt.In(agg.Calendar.Location()).Format(time.RFC3339)})
	tw.Render()
}

func printBuckets(title string, buckets []report.WeekBucket, totals *report.Totals) {
	tw := newTable()
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Semana", "Início", "Fim", "Previstas", "Pendentes", "Concluídas", "Aderência"})
	for _, b := range buckets {
		tw.AppendRow(table.Row{
			b.Week.String(),
			b.RangeStart.Format("02/01"),
			b.RangeEnd.Format("02/01"),
			b.PlannedCount,
			b.PendingCount,
			b.CompletedCount,
			adherence(b.AdherencePercent),
		})
	}
	if totals != nil {
		tw.AppendFooter(table.Row{"Total", "", "", totals.Planned, totals.Pending, totals.Completed, adherence(totals.AdherencePercent)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	tw.Render()
}

func printRanges(keys []week.Key, cal week.Calendar) error {
	tw := newTable()
	tw.AppendHeader(table.Row{"Semana", "Início", "Fim"})
	for _, k := range keys {
		r, err := cal.Range(k)
		if err != nil {
			return err
		}
		tw.AppendRow(table.Row{k.String(), r.Start.Format("Mon 2006-01-02"), r.End.Format("Mon 2006-01-02 15:04:05.000")})
	}
	tw.Render()
	return nil
}

func printEvents(evts []domain.Event, loc *time.Location) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Quando", "Tipo", "Entidade", "Ator", "Dados"})
	for _, e := range evts {
		tw.AppendRow(table.Row{e.ID, e.TS.In(loc).Format("2006-01-02 15:04:05"), e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID, e.Payload})
	}
	tw.Render()
}
