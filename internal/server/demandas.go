package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"demandas/internal/domain"
	"demandas/internal/filter"
	"demandas/internal/lifecycle"
)

type demandaOutput struct {
	Body DemandaResponse `json:"body"`
}

func (h handlers) registerDemandas(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-demanda",
		Method:        http.MethodPost,
		Path:          "/demandas",
		Summary:       "Create demanda",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateDemandaRequest `json:"body"`
	}) (*demandaOutput, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		var raw string
		if input.Body.DataPrevista != nil {
			raw = *input.Body.DataPrevista
		}
		planned, err := lifecycle.ParseDataPrevista(raw)
		if err != nil {
			return nil, h.handleError(err)
		}
		d, err := h.e.CreateDemanda(ctx, lifecycle.Fields{
			Nome:          input.Body.Nome,
			Descricao:     input.Body.Descricao,
			ResponsavelID: input.Body.ResponsavelID,
			DataPrevista:  planned,
		}, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &demandaOutput{Body: h.demanda(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-demandas",
		Method:      http.MethodGet,
		Path:        "/demandas",
		Summary:     "List demandas",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status        string `query:"status" doc:"pending, completed or blank for all"`
		ResponsavelID string `query:"responsavel_id"`
		Unassigned    bool   `query:"unassigned"`
		Q             string `query:"q" doc:"case and accent insensitive substring of nome or descricao"`
	}) (*struct {
		Body paginatedDemandas `json:"body"`
	}, error) {
		c, err := criteria(input.Status, input.ResponsavelID, input.Unassigned, input.Q)
		if err != nil {
			return nil, h.handleError(err)
		}
		ds, err := h.e.ListDemandas(ctx, c)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body paginatedDemandas `json:"body"`
		}{Body: paginatedDemandas{Items: h.mapDemandas(ds), Filter: c.String()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-demanda",
		Method:      http.MethodGet,
		Path:        "/demandas/{id}",
		Summary:     "Get demanda",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*demandaOutput, error) {
		d, err := h.e.GetDemanda(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &demandaOutput{Body: h.demanda(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-demanda",
		Method:      http.MethodPatch,
		Path:        "/demandas/{id}",
		Summary:     "Edit demanda",
		Description: "Changes nome, descricao, responsavel_id or data_prevista. State is never changed here.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body UpdateDemandaRequest `json:"body"`
	}) (*demandaOutput, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		d, err := h.e.UpdateDemanda(ctx, input.ID, lifecycle.Patch{
			Nome:          input.Body.Nome,
			Descricao:     input.Body.Descricao,
			ResponsavelID: input.Body.ResponsavelID,
			DataPrevista:  input.Body.DataPrevista,
		}, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &demandaOutput{Body: h.demanda(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-demanda",
		Method:        http.MethodDelete,
		Path:          "/demandas/{id}",
		Summary:       "Delete demanda",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		if err := h.e.DeleteDemanda(ctx, input.ID, actorID); err != nil {
			return nil, h.handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conclude-demanda",
		Method:      http.MethodPost,
		Path:        "/demandas/{id}/conclude",
		Summary:     "Conclude demanda",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*demandaOutput, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		d, err := h.e.ConcludeDemanda(ctx, input.ID, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &demandaOutput{Body: h.demanda(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reopen-demanda",
		Method:      http.MethodPost,
		Path:        "/demandas/{id}/reopen",
		Summary:     "Reopen demanda",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*demandaOutput, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		d, err := h.e.ReopenDemanda(ctx, input.ID, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &demandaOutput{Body: h.demanda(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "demanda-history",
		Method:      http.MethodGet,
		Path:        "/demandas/{id}/history",
		Summary:     "Event history of a demanda",
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		evts, err := h.e.History(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(evts)}, nil
	})
}

func criteria(status, responsavel string, unassigned bool, q string) (filter.Criteria, error) {
	st, err := filter.ParseStatus(status)
	if err != nil {
		return filter.Criteria{}, err
	}
	c := filter.Criteria{Status: st, Unassigned: unassigned, Query: strings.TrimSpace(q)}
	if responsavel = strings.TrimSpace(responsavel); responsavel != "" {
		id, err := strconv.ParseInt(responsavel, 10, 64)
		if err != nil || id <= 0 {
			return c, domain.NewValidationError("responsavel_id", "invalid responsavel_id %q", responsavel)
		}
		c.ResponsavelID = &id
	}
	return c, nil
}
