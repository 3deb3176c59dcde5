package repo

import (
	"context"
	"database/sql"

	"scriptstudio/internal/domain"
)

const artifactColumns = `id,order_id,kind,title,body,quality,week,created_at,api_cost,research_calls,research_cost`

func scanArtifact(scan func(dest ...any) error) (domain.Artifact, error) {
	var a domain.Artifact
	err := scan(&a.ID, &a.OrderID, &a.Kind, &a.Title, &a.Body, &a.Quality, &a.Week, &a.CreatedAt, &a.APICost, &a.ResearchCalls, &a.ResearchCost)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertArtifactTx(ctx context.Context, tx *sql.Tx, a domain.Artifact) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO artifacts(`+artifactColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.OrderID, a.Kind, a.Title, a.Body, a.Quality, a.Week, a.CreatedAt, a.APICost, a.ResearchCalls, a.ResearchCost)
	return err
}

func (r Repo) GetArtifact(ctx context.Context, id string) (domain.Artifact, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id=?`, id)
	return scanArtifact(row.Scan)
}

// ListArtifacts returns artifacts for an order, optionally restricted to
// one calendar week, newest first.
func (r Repo) ListArtifacts(ctx context.Context, orderID, week string) ([]domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE order_id=?`
	args := []any{orderID}
	if week != "" {
		query += ` AND week=?`
		args = append(args, week)
	}
	query += ` ORDER BY week DESC, created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) AddResearchCallTx(ctx context.Context, tx *sql.Tx, artifactID string, cost float64) error {
	res, err := tx.ExecContext(ctx, `UPDATE artifacts SET research_calls=research_calls+1, research_cost=research_cost+? WHERE id=?`, cost, artifactID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ArtifactTotals aggregates counts and costs for the dashboard.
func (r Repo) ArtifactTotals(ctx context.Context) (samples, scripts int, apiCost, researchCost float64, err error) {
	row := r.DB.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN kind='sample' THEN 1 ELSE 0 END),0),
		COALESCE(SUM(CASE WHEN kind='script' THEN 1 ELSE 0 END),0),
		COALESCE(SUM(api_cost),0),
		COALESCE(SUM(research_cost),0)
	FROM artifacts`)
	err = row.Scan(&samples, &scripts, &apiCost, &researchCost)
	return
}
