package server

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"demandas/internal/domain"
	"demandas/internal/week"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type rawOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func (h handlers) registerWeeks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "week-range",
		Method:      http.MethodGet,
		Path:        "/weeks/{week}",
		Summary:     "Date range of a week key",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Week string `path:"week" example:"2025-W06"`
	}) (*struct {
		Body WeekRangeResponse `json:"body"`
	}, error) {
		k, err := week.ParseKey(input.Week)
		if err != nil {
			return nil, h.handleError(err)
		}
		r, err := h.e.Calendar.Range(k)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body WeekRangeResponse `json:"body"`
		}{Body: weekRangeResponse(k, r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "weeks-of-month",
		Method:      http.MethodGet,
		Path:        "/weeks",
		Summary:     "Weeks touching the month of ref, most recent first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Ref string `query:"ref" doc:"YYYY-MM-DD, defaults to today"`
	}) (*struct {
		Body []WeekRangeResponse `json:"body"`
	}, error) {
		ref, err := h.e.ResolveReference(input.Ref)
		if err != nil {
			return nil, h.handleError(err)
		}
		keys := h.e.Calendar.WeeksOfMonth(ref)
		out := make([]WeekRangeResponse, 0, len(keys))
		for _, k := range keys {
			r, err := h.e.Calendar.Range(k)
			if err != nil {
				return nil, h.handleError(err)
			}
			out = append(out, weekRangeResponse(k, r))
		}
		return &struct {
			Body []WeekRangeResponse `json:"body"`
		}{Body: out}, nil
	})
}

func (h handlers) registerReports(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "week-report",
		Method:      http.MethodGet,
		Path:        "/reports/weeks/{week}",
		Summary:     "Adherence of one week",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Week    string `path:"week" example:"2025-W06"`
		Members bool   `query:"members" default:"true"`
	}) (*struct {
		Body WeekBucketResponse `json:"body"`
	}, error) {
		k, err := week.ParseKey(input.Week)
		if err != nil {
			return nil, h.handleError(err)
		}
		b, err := h.e.WeekReport(ctx, k)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body WeekBucketResponse `json:"body"`
		}{Body: h.bucketResponse(b, input.Members)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "period-report",
		Method:      http.MethodGet,
		Path:        "/reports/period",
		Summary:     "Weekly adherence across a month or a date range",
		Description: "With from and to, every week touching the range is reported. Otherwise the month of ref (default today).",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Ref     string `query:"ref" doc:"YYYY-MM-DD"`
		From    string `query:"from" doc:"YYYY-MM-DD"`
		To      string `query:"to" doc:"YYYY-MM-DD"`
		Members bool   `query:"members"`
	}) (*struct {
		Body PeriodResponse `json:"body"`
	}, error) {
		from, to := strings.TrimSpace(input.From), strings.TrimSpace(input.To)
		if (from == "") != (to == "") {
			return nil, h.handleError(domain.NewValidationError("from", "from and to must be given together"))
		}
		var resp PeriodResponse
		if from != "" {
			f, err := h.e.ResolveReference(from)
			if err != nil {
				return nil, h.handleError(err)
			}
			t, err := h.e.ResolveReference(to)
			if err != nil {
				return nil, h.handleError(err)
			}
			if t.Before(f) {
				return nil, h.handleError(domain.NewValidationError("to", "to %s is before from %s", to, from))
			}
			p, err := h.e.RangeReport(ctx, f, t)
			if err != nil {
				return nil, h.handleError(err)
			}
			resp = h.periodResponse(p, input.Members)
		} else {
			ref, err := h.e.ResolveReference(input.Ref)
			if err != nil {
				return nil, h.handleError(err)
			}
			p, err := h.e.PeriodReport(ctx, ref)
			if err != nil {
				return nil, h.handleError(err)
			}
			resp = h.periodResponse(p, input.Members)
		}
		return &struct {
			Body PeriodResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "period-report-xlsx",
		Method:      http.MethodGet,
		Path:        "/reports/period.xlsx",
		Summary:     "Month comparison as a spreadsheet",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Ref string `query:"ref" doc:"YYYY-MM-DD"`
	}) (*rawOutput, error) {
		ref, err := h.e.ResolveReference(input.Ref)
		if err != nil {
			return nil, h.handleError(err)
		}
		var buf bytes.Buffer
		if err := h.e.ExportPeriodXLSX(ctx, &buf, ref); err != nil {
			return nil, h.handleError(err)
		}
		return &rawOutput{
			ContentType:        xlsxContentType,
			ContentDisposition: `attachment; filename="aderencia-` + ref.Format("2006-01") + `.xlsx"`,
			Body:               buf.Bytes(),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "period-report-svg",
		Method:      http.MethodGet,
		Path:        "/reports/period.svg",
		Summary:     "Month comparison as an SVG bar chart",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Ref string `query:"ref" doc:"YYYY-MM-DD"`
	}) (*rawOutput, error) {
		ref, err := h.e.ResolveReference(input.Ref)
		if err != nil {
			return nil, h.handleError(err)
		}
		svg, err := h.e.PeriodChartSVG(ctx, ref)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &rawOutput{ContentType: "image/svg+xml", Body: []byte(svg)}, nil
	})
}
