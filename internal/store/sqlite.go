package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/recycling-monitor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	form       TEXT NOT NULL,
	divisions  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_findings (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	division     TEXT NOT NULL,
	municipality TEXT NOT NULL,
	unit         TEXT NOT NULL,
	period       TEXT NOT NULL,
	indicator    TEXT NOT NULL,
	value        REAL NOT NULL,
	deviation    REAL NOT NULL,
	severity     TEXT NOT NULL,
	validated    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_form ON runs(form);
CREATE INDEX IF NOT EXISTS idx_run_findings_run_id ON run_findings(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, form string, divisions []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	divisionsJSON, err := json.Marshal(divisions)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal divisions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, form, divisions, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, form, string(divisionsJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Form:      form,
		Divisions: divisions,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunCounts) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		errorText(runErr), string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, form, divisions, status, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, form, divisions, status, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Form != "" {
		query += ` AND form = ?`
		args = append(args, filter.Form)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveFindings(ctx context.Context, runID string, findings []model.FindingRecord) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin findings")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_findings (run_id, division, municipality, unit, period, indicator, value, deviation, severity, validated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare findings")
	}
	defer stmt.Close() //nolint:errcheck

	for _, f := range findings {
		if _, err := stmt.ExecContext(ctx, findingArgs(runID, f)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert finding for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit findings")
}

func (s *SQLiteStore) ListFindings(ctx context.Context, runID string) ([]model.FindingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT division, municipality, unit, period, indicator, value, deviation, severity, validated
		 FROM run_findings WHERE run_id = ? ORDER BY division, municipality, unit, period, indicator`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list findings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.FindingRecord
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan finding")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list findings iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var divisionsJSON string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Form, &divisionsJSON, &r.Status, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRun(&r, []byte(divisionsJSON), summaryJSON.Valid, []byte(summaryJSON.String)); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode run")
	}
	return &r, nil
}

// decodeRun fills the JSON columns of a run.
func decodeRun(r *model.Run, divisions []byte, hasSummary bool, summary []byte) error {
	if err := json.Unmarshal(divisions, &r.Divisions); err != nil {
		return eris.Wrap(err, "unmarshal divisions")
	}
	if hasSummary {
		r.Summary = model.NewRunCounts()
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return eris.Wrap(err, "unmarshal summary")
		}
	}
	return nil
}

func findingArgs(runID string, f model.FindingRecord) []any {
	return []any{
		runID, f.Division, f.Municipality, f.Unit, f.Period, f.Indicator,
		f.Value, f.Deviation, string(f.Severity), string(f.Validated),
	}
}

func scanFinding(row scannable) (model.FindingRecord, error) {
	var f model.FindingRecord
	err := row.Scan(&f.Division, &f.Municipality, &f.Unit, &f.Period, &f.Indicator,
		&f.Value, &f.Deviation, &f.Severity, &f.Validated)
	return f, err
}
