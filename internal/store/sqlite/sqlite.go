// Package sqlite implements the repository contract on SQLite. Document
// bodies that have no query predicates (drivers, metrics, climate info) are
// stored as JSON columns; everything the engine filters on (region, date,
// disease, granularity, model version) is a real column with an index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/store"
)

// Store is a SQLite-backed document store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)
var _ store.CaseWriter = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Concurrent upserts from the worker pool serialize on a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		id      TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		country TEXT
	);

	CREATE TABLE IF NOT EXISTS cases (
		region_id   TEXT NOT NULL,
		date        TEXT NOT NULL,
		disease     TEXT NOT NULL,
		granularity TEXT NOT NULL DEFAULT 'daily',
		confirmed   INTEGER NOT NULL,
		deaths      INTEGER NOT NULL,
		recovered   INTEGER NOT NULL,
		PRIMARY KEY (region_id, date, disease, granularity)
	);
	CREATE INDEX IF NOT EXISTS idx_cases_disease_date ON cases(disease, date);

	CREATE TABLE IF NOT EXISTS risk_scores (
		id          TEXT PRIMARY KEY,
		region_id   TEXT NOT NULL,
		date        TEXT NOT NULL,
		disease     TEXT NOT NULL,
		score       REAL NOT NULL,
		level       TEXT NOT NULL,
		drivers     TEXT NOT NULL,
		metrics     TEXT NOT NULL,
		climate     TEXT NOT NULL,
		computed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_risk_disease_date ON risk_scores(disease, date);

	CREATE TABLE IF NOT EXISTS alerts (
		id         TEXT PRIMARY KEY,
		region_id  TEXT NOT NULL,
		date       TEXT NOT NULL,
		disease    TEXT NOT NULL,
		reason     TEXT NOT NULL,
		severity   TEXT NOT NULL,
		drivers    TEXT NOT NULL,
		risk_score REAL NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_disease_date ON alerts(disease, date);

	CREATE TABLE IF NOT EXISTS forecasts (
		id                 TEXT PRIMARY KEY,
		region_id          TEXT NOT NULL,
		date               TEXT NOT NULL,
		disease            TEXT NOT NULL,
		model_version      TEXT NOT NULL,
		pred_mean          REAL NOT NULL,
		pred_lower         REAL NOT NULL,
		pred_upper         REAL NOT NULL,
		source_granularity TEXT NOT NULL,
		generated_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_forecasts_disease_model ON forecasts(disease, model_version);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) PutRegions(ctx context.Context, regions []domain.Region) error {
	for _, r := range regions {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO regions (id, name, country) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, country = excluded.country`,
			r.ID, r.Name, r.Country)
		if err != nil {
			return wrap("put region", err)
		}
	}
	return nil
}

func (s *Store) PutCases(ctx context.Context, records []domain.CaseRecord) error {
	for _, rec := range records {
		g := rec.Granularity
		if g == "" {
			g = domain.Daily
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cases (region_id, date, disease, granularity, confirmed, deaths, recovered)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(region_id, date, disease, granularity) DO UPDATE SET
				confirmed = excluded.confirmed,
				deaths    = excluded.deaths,
				recovered = excluded.recovered`,
			rec.RegionID, domain.DayKey(rec.Date), rec.Disease, string(g),
			rec.Confirmed, rec.Deaths, rec.Recovered)
		if err != nil {
			return wrap("put case", err)
		}
	}
	return nil
}

func (s *Store) ListRegions(ctx context.Context, disease string) ([]domain.Region, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.region_id, COALESCE(r.name, c.region_id), COALESCE(r.country, '')
		FROM cases c LEFT JOIN regions r ON r.id = c.region_id
		WHERE c.disease = ?
		ORDER BY c.region_id`, disease)
	if err != nil {
		return nil, wrap("list regions", err)
	}
	defer rows.Close()

	var out []domain.Region
	for rows.Next() {
		var r domain.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.Country); err != nil {
			return nil, wrap("scan region", err)
		}
		out = append(out, r)
	}
	return out, wrapNil("list regions", rows.Err())
}

func (s *Store) CaseHistory(ctx context.Context, regionID string, from, to time.Time, disease string) ([]domain.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region_id, date, disease, granularity, confirmed, deaths, recovered
		FROM cases
		WHERE region_id = ? AND disease = ? AND granularity = 'daily' AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		regionID, disease, domain.DayKey(from), domain.DayKey(to))
	if err != nil {
		return nil, wrap("case history", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (s *Store) CaseSeries(ctx context.Context, regionID, disease string, g domain.Granularity, limit int) ([]domain.CaseRecord, error) {
	// Fetch newest-first with the limit, then reverse to ascending. A
	// non-positive limit returns the whole series (SQLite treats a
	// negative LIMIT as unbounded).
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT region_id, date, disease, granularity, confirmed, deaths, recovered
		FROM cases
		WHERE region_id = ? AND disease = ? AND granularity = ?
		ORDER BY date DESC LIMIT ?`,
		regionID, disease, string(g), limit)
	if err != nil {
		return nil, wrap("case series", err)
	}
	defer rows.Close()

	recs, err := scanCases(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (s *Store) LatestCaseDate(ctx context.Context, disease string) (time.Time, error) {
	var day sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM cases WHERE disease = ?`, disease).Scan(&day)
	if err != nil {
		return time.Time{}, wrap("latest case date", err)
	}
	if !day.Valid || day.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", day.String)
	if err != nil {
		return time.Time{}, wrap("latest case date", err)
	}
	return t, nil
}

func (s *Store) PutRiskScores(ctx context.Context, scores []domain.RiskScore) error {
	for _, sc := range scores {
		drivers, metrics, climate, err := marshalRiskBody(sc)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO risk_scores (id, region_id, date, disease, score, level, drivers, metrics, climate, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				score = excluded.score, level = excluded.level,
				drivers = excluded.drivers, metrics = excluded.metrics,
				climate = excluded.climate, computed_at = excluded.computed_at`,
			sc.ID, sc.RegionID, domain.DayKey(sc.Date), sc.Disease, sc.Score, string(sc.Level),
			drivers, metrics, climate, sc.ComputedAt.Format(time.RFC3339))
		if err != nil {
			return wrap("put risk score", err)
		}
	}
	return nil
}

func (s *Store) LatestRiskScores(ctx context.Context, date time.Time, disease string) ([]domain.RiskScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, region_id, date, disease, score, level, drivers, metrics, climate, computed_at
		FROM risk_scores
		WHERE disease = ? AND date = ?
		ORDER BY region_id ASC`, disease, domain.DayKey(date))
	if err != nil {
		return nil, wrap("latest risk scores", err)
	}
	defer rows.Close()

	var out []domain.RiskScore
	for rows.Next() {
		var sc domain.RiskScore
		var day, level, drivers, metrics, climate, computedAt string
		if err := rows.Scan(&sc.ID, &sc.RegionID, &day, &sc.Disease, &sc.Score, &level,
			&drivers, &metrics, &climate, &computedAt); err != nil {
			return nil, wrap("scan risk score", err)
		}
		sc.Level = domain.RiskLevel(level)
		if sc.Date, err = time.Parse("2006-01-02", day); err != nil {
			return nil, wrap("parse risk date", err)
		}
		if err := json.Unmarshal([]byte(drivers), &sc.Drivers); err != nil {
			return nil, wrap("decode drivers", err)
		}
		if err := json.Unmarshal([]byte(metrics), &sc.Metrics); err != nil {
			return nil, wrap("decode metrics", err)
		}
		if err := json.Unmarshal([]byte(climate), &sc.Climate); err != nil {
			return nil, wrap("decode climate", err)
		}
		if sc.ComputedAt, err = time.Parse(time.RFC3339, computedAt); err != nil {
			return nil, wrap("parse computed_at", err)
		}
		out = append(out, sc)
	}
	return out, wrapNil("latest risk scores", rows.Err())
}

func (s *Store) DeleteRiskScores(ctx context.Context, disease string) (int, error) {
	return s.deleteByDisease(ctx, "risk_scores", disease)
}

func (s *Store) PutAlerts(ctx context.Context, alerts []domain.Alert) error {
	for _, a := range alerts {
		drivers, err := json.Marshal(a.Drivers)
		if err != nil {
			return wrap("encode drivers", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO alerts (id, region_id, date, disease, reason, severity, drivers, risk_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				severity = excluded.severity, drivers = excluded.drivers,
				risk_score = excluded.risk_score, created_at = excluded.created_at`,
			a.ID, a.RegionID, domain.DayKey(a.Date), a.Disease, a.Reason, string(a.Severity),
			string(drivers), a.RiskScore, a.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return wrap("put alert", err)
		}
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, date time.Time, disease string) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, region_id, date, disease, reason, severity, drivers, risk_score, created_at
		FROM alerts
		WHERE disease = ? AND date = ?
		ORDER BY region_id ASC`, disease, domain.DayKey(date))
	if err != nil {
		return nil, wrap("list alerts", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var day, severity, drivers, createdAt string
		if err := rows.Scan(&a.ID, &a.RegionID, &day, &a.Disease, &a.Reason, &severity,
			&drivers, &a.RiskScore, &createdAt); err != nil {
			return nil, wrap("scan alert", err)
		}
		a.Severity = domain.RiskLevel(severity)
		if a.Date, err = time.Parse("2006-01-02", day); err != nil {
			return nil, wrap("parse alert date", err)
		}
		if err := json.Unmarshal([]byte(drivers), &a.Drivers); err != nil {
			return nil, wrap("decode drivers", err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, wrap("parse created_at", err)
		}
		out = append(out, a)
	}
	return out, wrapNil("list alerts", rows.Err())
}

func (s *Store) DeleteAlerts(ctx context.Context, disease string) (int, error) {
	return s.deleteByDisease(ctx, "alerts", disease)
}

func (s *Store) PutForecasts(ctx context.Context, records []domain.ForecastRecord) error {
	for _, r := range records {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO forecasts (id, region_id, date, disease, model_version, pred_mean, pred_lower, pred_upper, source_granularity, generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				pred_mean = excluded.pred_mean, pred_lower = excluded.pred_lower,
				pred_upper = excluded.pred_upper, source_granularity = excluded.source_granularity,
				generated_at = excluded.generated_at`,
			r.ID, r.RegionID, domain.DayKey(r.Date), r.Disease, r.ModelVersion,
			r.PredMean, r.PredLower, r.PredUpper, string(r.SourceGranularity),
			r.GeneratedAt.Format(time.RFC3339))
		if err != nil {
			return wrap("put forecast", err)
		}
	}
	return nil
}

func (s *Store) ListForecasts(ctx context.Context, disease, modelVersion string) ([]domain.ForecastRecord, error) {
	query := `
		SELECT id, region_id, date, disease, model_version, pred_mean, pred_lower, pred_upper, source_granularity, generated_at
		FROM forecasts WHERE disease = ?`
	args := []any{disease}
	if modelVersion != "" {
		query += ` AND model_version = ?`
		args = append(args, modelVersion)
	}
	query += ` ORDER BY region_id ASC, date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list forecasts", err)
	}
	defer rows.Close()

	var out []domain.ForecastRecord
	for rows.Next() {
		var r domain.ForecastRecord
		var day, granularity, generatedAt string
		if err := rows.Scan(&r.ID, &r.RegionID, &day, &r.Disease, &r.ModelVersion,
			&r.PredMean, &r.PredLower, &r.PredUpper, &granularity, &generatedAt); err != nil {
			return nil, wrap("scan forecast", err)
		}
		r.SourceGranularity = domain.Granularity(granularity)
		if r.Date, err = time.Parse("2006-01-02", day); err != nil {
			return nil, wrap("parse forecast date", err)
		}
		if r.GeneratedAt, err = time.Parse(time.RFC3339, generatedAt); err != nil {
			return nil, wrap("parse generated_at", err)
		}
		out = append(out, r)
	}
	return out, wrapNil("list forecasts", rows.Err())
}

func (s *Store) DeleteForecasts(ctx context.Context, disease string) (int, error) {
	return s.deleteByDisease(ctx, "forecasts", disease)
}

func (s *Store) Counts(ctx context.Context, disease string) (store.Counts, error) {
	var c store.Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"risk_scores", &c.RiskScores},
		{"alerts", &c.Alerts},
		{"forecasts", &c.Forecasts},
	} {
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+q.table+` WHERE disease = ?`, disease).Scan(q.dst)
		if err != nil {
			return store.Counts{}, wrap("count "+q.table, err)
		}
	}
	return c, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// deleteByDisease removes every row for one disease in the given table. The
// disease predicate is the isolation boundary: resets for disease A can
// never reach disease B's rows.
func (s *Store) deleteByDisease(ctx context.Context, table, disease string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE disease = ?`, disease)
	if err != nil {
		return 0, wrap("delete "+table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("delete "+table, err)
	}
	return int(n), nil
}

func scanCases(rows *sql.Rows) ([]domain.CaseRecord, error) {
	var out []domain.CaseRecord
	for rows.Next() {
		var rec domain.CaseRecord
		var day, granularity string
		if err := rows.Scan(&rec.RegionID, &day, &rec.Disease, &granularity,
			&rec.Confirmed, &rec.Deaths, &rec.Recovered); err != nil {
			return nil, wrap("scan case", err)
		}
		rec.Granularity = domain.Granularity(granularity)
		var err error
		if rec.Date, err = time.Parse("2006-01-02", day); err != nil {
			return nil, wrap("parse case date", err)
		}
		out = append(out, rec)
	}
	return out, wrapNil("scan cases", rows.Err())
}

func marshalRiskBody(sc domain.RiskScore) (drivers, metrics, climate string, err error) {
	d, err := json.Marshal(sc.Drivers)
	if err != nil {
		return "", "", "", wrap("encode drivers", err)
	}
	m, err := json.Marshal(sc.Metrics)
	if err != nil {
		return "", "", "", wrap("encode metrics", err)
	}
	c, err := json.Marshal(sc.Climate)
	if err != nil {
		return "", "", "", wrap("encode climate", err)
	}
	return string(d), string(m), string(c), nil
}

// wrap tags a storage failure as ErrUnavailable so callers can classify it.
func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}

func wrapNil(op string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(op, err)
}
