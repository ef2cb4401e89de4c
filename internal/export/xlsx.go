// Package export writes reporting periods to spreadsheet workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"demandas/internal/domain"
	"demandas/internal/report"
	"demandas/internal/week"
)

const (
	SheetWeeks    = "Semanas"
	SheetDemandas = "Demandas"
)

var (
	weekHeader    = []any{"Semana", "Início", "Fim", "Planejadas", "Pendentes", "Concluídas", "Aderência (%)"}
	demandaHeader = []any{"ID", "Nome", "Responsável", "Data prevista", "Semana prevista", "Data conclusão", "Semana conclusão", "Situação", "No prazo"}
)

// WritePeriodXLSX writes the comparison table of p and a drill-down sheet with
// every demanda planned or concluded in one of its weeks.
func WritePeriodXLSX(w io.Writer, p report.Period, demands []domain.Demanda, agg report.Aggregator) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetWeeks); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetDemandas); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := writeWeeks(f, p, header); err != nil {
		return fmt.Errorf("sheet %s: %w", SheetWeeks, err)
	}
	if err := writeDemandas(f, p, demands, agg, header); err != nil {
		return fmt.Errorf("sheet %s: %w", SheetDemandas, err)
	}
	f.SetActiveSheet(0)
	_, err = f.WriteTo(w)
	return err
}

func writeWeeks(f *excelize.File, p report.Period, header int) error {
	if err := setRow(f, SheetWeeks, 1, weekHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetWeeks, "A1", "G1", header); err != nil {
		return err
	}
	row := 2
	for _, b := range p.Weeks {
		values := []any{
			b.Week.String(),
			b.RangeStart.Format(domain.DateLayout),
			b.RangeEnd.Format(domain.DateLayout),
			b.PlannedCount,
			b.PendingCount,
			b.CompletedCount,
			b.AdherencePercent,
		}
		if err := setRow(f, SheetWeeks, row, values); err != nil {
			return err
		}
		row++
	}
	t := p.Totals
	if err := setRow(f, SheetWeeks, row, []any{"Total " + p.Label, "", "", t.Planned, t.Pending, t.Completed, t.AdherencePercent}); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(weekHeader), row)
	if err := f.SetCellStyle(SheetWeeks, first, last, header); err != nil {
		return err
	}
	return f.SetColWidth(SheetWeeks, "A", "G", 14)
}

func writeDemandas(f *excelize.File, p report.Period, demands []domain.Demanda, agg report.Aggregator, header int) error {
	if err := setRow(f, SheetDemandas, 1, demandaHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetDemandas, "A1", "I1", header); err != nil {
		return err
	}
	inPeriod := make(map[week.Key]bool, len(p.Weeks))
	for _, b := range p.Weeks {
		inPeriod[b.Week] = true
	}
	row := 2
	for _, d := range demands {
		pl := agg.Classify(d)
		if !keyIn(inPeriod, pl.PlannedWeek) && !keyIn(inPeriod, pl.CompletedWeek) {
			continue
		}
		values := []any{
			d.ID,
			d.Nome,
			d.ResponsavelNome,
			dateCell(d.DataPrevista),
			keyCell(pl.PlannedWeek),
			conclusaoCell(d, agg),
			keyCell(pl.CompletedWeek),
			stateLabel(pl.State),
			onTimeLabel(pl.OnTime),
		}
		if err := setRow(f, SheetDemandas, row, values); err != nil {
			return err
		}
		row++
	}
	if err := f.SetColWidth(SheetDemandas, "B", "B", 40); err != nil {
		return err
	}
	return f.SetColWidth(SheetDemandas, "C", "I", 16)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func keyIn(set map[week.Key]bool, k *week.Key) bool {
	return k != nil && set[*k]
}

func keyCell(k *week.Key) string {
	if k == nil {
		return ""
	}
	return k.String()
}

func dateCell(d *domain.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func conclusaoCell(d domain.Demanda, agg report.Aggregator) string {
	if d.DataConclusao == nil {
		return ""
	}
	return d.DataConclusao.In(agg.Calendar.Location()).Format("2006-01-02 15:04")
}

func stateLabel(s domain.State) string {
	if s == domain.StateCompleted {
		return "Concluída"
	}
	return "Pendente"
}

func onTimeLabel(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "Sim"
	default:
		return "Não"
	}
}
