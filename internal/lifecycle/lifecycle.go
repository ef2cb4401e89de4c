// Package lifecycle holds the pure state machine of a demanda: creation,
// edits, conclusion and reopening. Every function returns the next value and
// never touches a store.
package lifecycle

import (
	"strings"
	"time"

	"demandas/internal/domain"
)

// Fields are the editable attributes supplied at creation.
type Fields struct {
	Nome          string
	Descricao     string
	ResponsavelID *int64
	DataPrevista  *domain.Date
}

// Patch carries a partial edit. Nil pointers leave the attribute untouched.
// ResponsavelID 0 clears the responsible person and an empty DataPrevista
// clears the planned date.
type Patch struct {
	Nome          *string
	Descricao     *string
	ResponsavelID *int64
	DataPrevista  *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Nome == nil && p.Descricao == nil && p.ResponsavelID == nil && p.DataPrevista == nil
}

// Create validates f and returns a new pending demanda stamped with now.
func Create(f Fields, now time.Time) (domain.Demanda, error) {
	nome, err := normalizeNome(f.Nome)
	if err != nil {
		return domain.Demanda{}, err
	}
	d := domain.Demanda{
		Nome:          nome,
		Descricao:     strings.TrimSpace(f.Descricao),
		ResponsavelID: positive(f.ResponsavelID),
		DataPrevista:  f.DataPrevista,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return d, nil
}

// Edit applies p to d. DataConclusao is never modified here.
func Edit(d domain.Demanda, p Patch, now time.Time) (domain.Demanda, error) {
	next := d
	if p.Nome != nil {
		nome, err := normalizeNome(*p.Nome)
		if err != nil {
			return d, err
		}
		next.Nome = nome
	}
	if p.Descricao != nil {
		next.Descricao = strings.TrimSpace(*p.Descricao)
	}
	if p.ResponsavelID != nil {
		next.ResponsavelID = positive(p.ResponsavelID)
		if next.ResponsavelID == nil {
			next.ResponsavelNome = ""
		}
	}
	if p.DataPrevista != nil {
		date, err := ParseDataPrevista(*p.DataPrevista)
		if err != nil {
			return d, err
		}
		next.DataPrevista = date
	}
	next.UpdatedAt = now
	return next, nil
}

// Conclude moves a pending demanda to completed at now.
func Conclude(d domain.Demanda, now time.Time) (domain.Demanda, error) {
	if err := CanConclude(d); err != nil {
		return d, err
	}
	if now.Before(d.CreatedAt) {
		return d, domain.NewValidationError("data_conclusao", "conclusion %s precedes creation %s",
			now.Format(time.RFC3339), d.CreatedAt.Format(time.RFC3339))
	}
	next := d
	at := now
	next.DataConclusao = &at
	next.UpdatedAt = now
	return next, nil
}

// Reopen moves a completed demanda back to pending, discarding its conclusion
// timestamp.
func Reopen(d domain.Demanda, now time.Time) (domain.Demanda, error) {
	if err := CanReopen(d); err != nil {
		return d, err
	}
	next := d
	next.DataConclusao = nil
	next.UpdatedAt = now
	return next, nil
}

// StateOf reports the derived state of d.
func StateOf(d domain.Demanda) domain.State {
	return d.State()
}

// CanConclude fails with an InvalidTransitionError unless d is pending.
func CanConclude(d domain.Demanda) error {
	if d.State() != domain.StatePending {
		return &domain.InvalidTransitionError{ID: d.ID, From: d.State(), Action: "conclude"}
	}
	return nil
}

// CanReopen fails with an InvalidTransitionError unless d is completed.
func CanReopen(d domain.Demanda) error {
	if d.State() != domain.StateCompleted {
		return &domain.InvalidTransitionError{ID: d.ID, From: d.State(), Action: "reopen"}
	}
	return nil
}

// ParseDataPrevista parses a YYYY-MM-DD planned date. Blank input means no date.
func ParseDataPrevista(s string) (*domain.Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	date, err := domain.ParseDate(s)
	if err != nil {
		return nil, domain.NewValidationError("data_prevista", "%v", err)
	}
	return &date, nil
}

func normalizeNome(s string) (string, error) {
	nome := strings.TrimSpace(s)
	if nome == "" {
		return "", domain.NewValidationError("nome", "nome is required")
	}
	return nome, nil
}

func positive(id *int64) *int64 {
	if id == nil || *id <= 0 {
		return nil
	}
	v := *id
	return &v
}
