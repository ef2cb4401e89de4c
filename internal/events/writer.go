package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the engine.
const (
	DemandaCreated     = "demanda.created"
	DemandaUpdated     = "demanda.updated"
	DemandaConcluded   = "demanda.concluded"
	DemandaReopened    = "demanda.reopened"
	DemandaDeleted     = "demanda.deleted"
	ResponsavelCreated = "responsavel.created"
	APIKeyCreated      = "api_key.created"
	APIKeyRevoked      = "api_key.revoked"
)

const (
	KindDemanda     = "demanda"
	KindResponsavel = "responsavel"
	KindAPIKey      = "api_key"
)

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Append writes one event row inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actorID == "" {
		actorID = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339Nano), evtType, entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
