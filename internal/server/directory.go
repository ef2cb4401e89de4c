package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"demandas/internal/repo"
)

func (h handlers) registerResponsaveis(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-responsavel",
		Method:        http.MethodPost,
		Path:          "/responsaveis",
		Summary:       "Add a person to the directory",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateResponsavelRequest `json:"body"`
	}) (*struct {
		Body ResponsavelResponse `json:"body"`
	}, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		p, err := h.e.CreateResponsavel(ctx, input.Body.Nome, input.Body.Email, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body ResponsavelResponse `json:"body"`
		}{Body: responsavelResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-responsaveis",
		Method:      http.MethodGet,
		Path:        "/responsaveis",
		Summary:     "List the people directory",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ResponsavelResponse `json:"body"`
	}, error) {
		people, err := h.e.ListResponsaveis(ctx)
		if err != nil {
			return nil, h.handleError(err)
		}
		out := make([]ResponsavelResponse, 0, len(people))
		for _, p := range people {
			out = append(out, responsavelResponse(p))
		}
		return &struct {
			Body []ResponsavelResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Issue an API key for the calling actor",
		Description:   "The raw key is only returned by this call.",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		key, raw, err := h.e.CreateAPIKey(ctx, actorID, input.Body.Name)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: apiKeyResponse(key, raw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List API keys of the calling actor",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		keys, err := h.e.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse(k, ""))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-api-key",
		Method:        http.MethodDelete,
		Path:          "/api-keys/{id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		if err := h.e.RevokeAPIKey(ctx, input.ID, actorID); err != nil {
			return nil, h.handleError(err)
		}
		return nil, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursor int64
		if input.Cursor != "" {
			c, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || c <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursor = c
		}
		evts, err := h.e.EventLog(ctx, repo.EventFilter{
			Limit:      limit + 1,
			Cursor:     cursor,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		resp := paginatedEvents{}
		if len(evts) > limit {
			evts = evts[:limit]
			resp.NextCursor = strconv.FormatInt(evts[limit-1].ID, 10)
		}
		resp.Items = mapEvents(evts)
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
