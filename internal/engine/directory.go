package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"demandas/internal/domain"
	"demandas/internal/events"
	"demandas/internal/repo"
)

// CreateResponsavel adds a person to the directory.
func (e Engine) CreateResponsavel(ctx context.Context, nome, email, actorID string) (domain.Responsavel, error) {
	p := domain.Responsavel{Nome: strings.TrimSpace(nome), Email: strings.TrimSpace(email), CreatedAt: e.now()}
	if p.Nome == "" {
		return p, domain.NewValidationError("nome", "nome is required")
	}
	if p.Email != "" {
		addr, err := mail.ParseAddress(p.Email)
		if err != nil {
			return p, domain.NewValidationError("email", "invalid email %q", p.Email)
		}
		p.Email = addr.Address
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertResponsavel(ctx, tx, p)
	if err != nil {
		return p, fmt.Errorf("insert responsavel: %w", err)
	}
	p.ID = id
	if err := e.append(ctx, tx, events.ResponsavelCreated, events.KindResponsavel, idString(id), actorID, events.Payload{"nome": p.Nome}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	e.log().Info("responsavel created", "id", id, "actor", actorID)
	return p, nil
}

func (e Engine) ListResponsaveis(ctx context.Context) ([]domain.Responsavel, error) {
	return e.Repo.ListResponsaveis(ctx)
}

// CreateAPIKey issues a key for actorID. The raw key is returned once; only
// its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", domain.NewValidationError("actor_id", "actor_id is required")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	raw := "dm_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.now(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return key, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return key, "", fmt.Errorf("insert api key: %w", err)
	}
	if err := e.append(ctx, tx, events.APIKeyCreated, events.KindAPIKey, key.ID, actorID, events.Payload{"name": key.Name}); err != nil {
		return key, "", err
	}
	if err := tx.Commit(); err != nil {
		return key, "", err
	}
	e.log().Info("api key created", "id", key.ID, "actor", actorID)
	return key, raw, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, actorID)
}

// RevokeAPIKey deletes a key by id.
func (e Engine) RevokeAPIKey(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, id); err != nil {
		return fmt.Errorf("api key %s: %w", id, err)
	}
	if err := e.append(ctx, tx, events.APIKeyRevoked, events.KindAPIKey, id, actorID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.log().Info("api key revoked", "id", id, "actor", actorID)
	return nil
}
