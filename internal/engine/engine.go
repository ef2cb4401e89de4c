package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"demandas/internal/config"
	"demandas/internal/domain"
	"demandas/internal/events"
	"demandas/internal/filter"
	"demandas/internal/lifecycle"
	"demandas/internal/logger"
	"demandas/internal/repo"
	"demandas/internal/week"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Calendar week.Calendar
	Log      *slog.Logger
	Now      func() time.Time
}

// New wires an engine over db. A nil cfg uses config.Default and a nil log
// discards records.
func New(db *sql.DB, cfg *config.Config, log *slog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Discard()
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Warn("calendar timezone unavailable, using UTC", "error", err)
		loc = time.UTC
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Config:   cfg,
		Calendar: week.NewCalendar(loc),
		Log:      log,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logger.Discard()
}

func (e Engine) append(ctx context.Context, tx *sql.Tx, evtType, kind, entityID, actorID string, payload events.Payload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, kind, entityID, actorID, payload)
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, repo.ErrNotFound)
}

func (e Engine) getDemandaTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Demanda, error) {
	d, err := e.Repo.GetDemandaTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return d, notFound("demanda", id)
	}
	return d, err
}

// ensureResponsavel rejects references to unknown people.
func (e Engine) ensureResponsavel(ctx context.Context, tx *sql.Tx, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := e.Repo.GetResponsavelTx(ctx, tx, *id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.NewValidationError("responsavel_id", "responsavel %d does not exist", *id)
		}
		return err
	}
	return nil
}

// CreateDemanda validates f and stores a new pending demanda.
func (e Engine) CreateDemanda(ctx context.Context, f lifecycle.Fields, actorID string) (domain.Demanda, error) {
	d, err := lifecycle.Create(f, e.now())
	if err != nil {
		return d, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()

	if err := e.ensureResponsavel(ctx, tx, d.ResponsavelID); err != nil {
		return d, err
	}
	id, err := e.Repo.InsertDemanda(ctx, tx, d)
	if err != nil {
		return d, fmt.Errorf("insert demanda: %w", err)
	}
	d.ID = id
	if err := e.append(ctx, tx, events.DemandaCreated, events.KindDemanda, idString(id), actorID, demandaPayload(d)); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	e.log().Info("demanda created", "id", id, "actor", actorID, "data_prevista", dateString(d.DataPrevista))
	return e.Repo.GetDemanda(ctx, id)
}

// UpdateDemanda applies a partial edit. The conclusion timestamp is never
// changed here.
func (e Engine) UpdateDemanda(ctx context.Context, id int64, p lifecycle.Patch, actorID string) (domain.Demanda, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demanda{}, err
	}
	defer tx.Rollback()

	cur, err := e.getDemandaTx(ctx, tx, id)
	if err != nil {
		return cur, err
	}
	if p.Empty() {
		return cur, nil
	}
	next, err := lifecycle.Edit(cur, p, e.now())
	if err != nil {
		return cur, err
	}
	if p.ResponsavelID != nil {
		if err := e.ensureResponsavel(ctx, tx, next.ResponsavelID); err != nil {
			return cur, err
		}
	}
	if err := e.Repo.UpdateDemanda(ctx, tx, next); err != nil {
		return cur, fmt.Errorf("update demanda: %w", err)
	}
	payload := events.Payload{"changed": changedFields(p)}
	for k, v := range demandaPayload(next) {
		payload[k] = v
	}
	if err := e.append(ctx, tx, events.DemandaUpdated, events.KindDemanda, idString(id), actorID, payload); err != nil {
		return cur, err
	}
	if err := tx.Commit(); err != nil {
		return cur, err
	}
	e.log().Info("demanda updated", "id", id, "actor", actorID, "changed", changedFields(p))
	return e.Repo.GetDemanda(ctx, id)
}

// ConcludeDemanda marks a pending demanda as completed now.
func (e Engine) ConcludeDemanda(ctx context.Context, id int64, actorID string) (domain.Demanda, error) {
	return e.transition(ctx, id, actorID, events.DemandaConcluded, lifecycle.Conclude, func(prev, next domain.Demanda) events.Payload {
		return events.Payload{"data_conclusao": next.DataConclusao.UTC().Format(time.RFC3339Nano), "week": e.Calendar.Key(*next.DataConclusao).String()}
	})
}

// ReopenDemanda returns a completed demanda to pending. The discarded
// conclusion timestamp is kept in the event log.
func (e Engine) ReopenDemanda(ctx context.Context, id int64, actorID string) (domain.Demanda, error) {
	return e.transition(ctx, id, actorID, events.DemandaReopened, lifecycle.Reopen, func(prev, next domain.Demanda) events.Payload {
		return events.Payload{"previous_data_conclusao": prev.DataConclusao.UTC().Format(time.RFC3339Nano)}
	})
}

func (e Engine) transition(
	ctx context.Context,
	id int64,
	actorID, evtType string,
	step func(domain.Demanda, time.Time) (domain.Demanda, error),
	payload func(prev, next domain.Demanda) events.Payload,
) (domain.Demanda, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demanda{}, err
	}
	defer tx.Rollback()

	cur, err := e.getDemandaTx(ctx, tx, id)
	if err != nil {
		return cur, err
	}
	next, err := step(cur, e.now())
	if err != nil {
		return cur, err
	}
	if err := e.Repo.UpdateDemanda(ctx, tx, next); err != nil {
		return cur, fmt.Errorf("update demanda: %w", err)
	}
	if err := e.append(ctx, tx, evtType, events.KindDemanda, idString(id), actorID, payload(cur, next)); err != nil {
		return cur, err
	}
	if err := tx.Commit(); err != nil {
		return cur, err
	}
	e.log().Info(evtType, "id", id, "actor", actorID, "state", next.State())
	return next, nil
}

// DeleteDemanda removes a demanda from the store.
func (e Engine) DeleteDemanda(ctx context.Context, id int64, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cur, err := e.getDemandaTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteDemanda(ctx, tx, id); err != nil {
		return fmt.Errorf("delete demanda: %w", err)
	}
	if err := e.append(ctx, tx, events.DemandaDeleted, events.KindDemanda, idString(id), actorID, demandaPayload(cur)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.log().Info("demanda deleted", "id", id, "actor", actorID)
	return nil
}

func (e Engine) GetDemanda(ctx context.Context, id int64) (domain.Demanda, error) {
	return e.getDemandaTx(ctx, nil, id)
}

// ListDemandas reads the full snapshot and filters it in memory.
func (e Engine) ListDemandas(ctx context.Context, c filter.Criteria) ([]domain.Demanda, error) {
	all, err := e.Repo.ListDemandas(ctx)
	if err != nil {
		return nil, err
	}
	return c.Apply(all), nil
}

// History returns the events recorded for a demanda, oldest first. It
// outlives the demanda itself.
func (e Engine) History(ctx context.Context, id int64) ([]domain.Event, error) {
	return e.Repo.EventsForEntity(ctx, events.KindDemanda, idString(id))
}

// EventLog lists the audit log newest first.
func (e Engine) EventLog(ctx context.Context, f repo.EventFilter) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}

func demandaPayload(d domain.Demanda) events.Payload {
	p := events.Payload{"nome": d.Nome}
	if d.ResponsavelID != nil {
		p["responsavel_id"] = *d.ResponsavelID
	}
	if d.DataPrevista != nil {
		p["data_prevista"] = d.DataPrevista.String()
	}
	if d.DataConclusao != nil {
		p["data_conclusao"] = d.DataConclusao.UTC().Format(time.RFC3339Nano)
	}
	return p
}

func changedFields(p lifecycle.Patch) []string {
	var out []string
	if p.Nome != nil {
		out = append(out, "nome")
	}
	if p.Descricao != nil {
		out = append(out, "descricao")
	}
	if p.ResponsavelID != nil {
		out = append(out, "responsavel_id")
	}
	if p.DataPrevista != nil {
		out = append(out, "data_prevista")
	}
	return out
}

func idString(id int64) string {
	return fmt.Sprintf("%d", id)
}

func dateString(d *domain.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
