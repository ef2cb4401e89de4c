package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"demandas/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) on(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

const demandaColumns = `d.id, d.nome, COALESCE(d.descricao,''), d.responsavel_id, COALESCE(p.nome,''),
	d.data_prevista, d.data_conclusao, d.created_at, d.updated_at
FROM demandas d LEFT JOIN responsaveis p ON p.id = d.responsavel_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDemanda(row rowScanner) (domain.Demanda, error) {
	var (
		d                    domain.Demanda
		respID               sql.NullInt64
		prevista, conclusao  sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&d.ID, &d.Nome, &d.Descricao, &respID, &d.ResponsavelNome, &prevista, &conclusao, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if respID.Valid {
		id := respID.Int64
		d.ResponsavelID = &id
	}
	if prevista.Valid && prevista.String != "" {
		date, err := domain.ParseDate(prevista.String)
		if err != nil {
			return d, fmt.Errorf("demanda %d data_prevista: %w", d.ID, err)
		}
		d.DataPrevista = &date
	}
	if conclusao.Valid && conclusao.String != "" {
		ts, err := parseTime(conclusao.String)
		if err != nil {
			return d, fmt.Errorf("demanda %d data_conclusao: %w", d.ID, err)
		}
		d.DataConclusao = &ts
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return d, fmt.Errorf("demanda %d created_at: %w", d.ID, err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return d, fmt.Errorf("demanda %d updated_at: %w", d.ID, err)
	}
	return d, nil
}

// InsertDemanda stores d and returns its new id.
func (r Repo) InsertDemanda(ctx context.Context, tx *sql.Tx, d domain.Demanda) (int64, error) {
	res, err := r.on(tx).ExecContext(ctx, `INSERT INTO demandas(nome,descricao,responsavel_id,data_prevista,data_conclusao,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		d.Nome, nullable(d.Descricao), nullableID(d.ResponsavelID), nullableDate(d.DataPrevista), nullableTime(d.DataConclusao),
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateDemanda overwrites every mutable column of d.
func (r Repo) UpdateDemanda(ctx context.Context, tx *sql.Tx, d domain.Demanda) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE demandas SET nome=?, descricao=?, responsavel_id=?, data_prevista=?, data_conclusao=?, updated_at=? WHERE id=?`,
		d.Nome, nullable(d.Descricao), nullableID(d.ResponsavelID), nullableDate(d.DataPrevista), nullableTime(d.DataConclusao),
		formatTime(d.UpdatedAt), d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetDemanda(ctx context.Context, id int64) (domain.Demanda, error) {
	return r.GetDemandaTx(ctx, nil, id)
}

func (r Repo) GetDemandaTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Demanda, error) {
	return scanDemanda(r.on(tx).QueryRowContext(ctx, `SELECT `+demandaColumns+` WHERE d.id=?`, id))
}

// ListDemandas returns the full snapshot ordered by id.
func (r Repo) ListDemandas(ctx context.Context) ([]domain.Demanda, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+demandaColumns+` ORDER BY d.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Demanda{}
	for rows.Next() {
		d, err := scanDemanda(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) DeleteDemanda(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM demandas WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDemandas returns pending and completed totals.
func (r Repo) CountDemandas(ctx context.Context) (pending, completed int, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT
	COALESCE(SUM(CASE WHEN data_conclusao IS NULL THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN data_conclusao IS NOT NULL THEN 1 ELSE 0 END),0)
FROM demandas`).Scan(&pending, &completed)
	return pending, completed, err
}

func (r Repo) InsertResponsavel(ctx context.Context, tx *sql.Tx, p domain.Responsavel) (int64, error) {
	res, err := r.on(tx).ExecContext(ctx, `INSERT INTO responsaveis(nome,email,created_at) VALUES (?,?,?)`,
		p.Nome, nullable(p.Email), formatTime(p.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetResponsavelTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Responsavel, error) {
	var (
		p         domain.Responsavel
		createdAt string
	)
	err := r.on(tx).QueryRowContext(ctx, `SELECT id, nome, COALESCE(email,''), created_at FROM responsaveis WHERE id=?`, id).
		Scan(&p.ID, &p.Nome, &p.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.CreatedAt, err = parseTime(createdAt)
	return p, err
}

func (r Repo) ListResponsaveis(ctx context.Context) ([]domain.Responsavel, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, nome, COALESCE(email,''), created_at FROM responsaveis ORDER BY nome, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Responsavel{}
	for rows.Next() {
		var (
			p         domain.Responsavel
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Nome, &p.Email, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDate(v *domain.Date) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return formatTime(*v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
