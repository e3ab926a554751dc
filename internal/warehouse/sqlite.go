package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLite is the embedded warehouse. It owns fact_sessions and can
// re-materialize daily_metrics and dq_checks from it.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fact_sessions (
    user_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    experiment_id TEXT NOT NULL,
    variant TEXT NOT NULL,
    event_date TEXT NOT NULL,
    is_experiment_period INTEGER NOT NULL DEFAULT 1,
    has_impression INTEGER NOT NULL DEFAULT 0,
    has_click INTEGER NOT NULL DEFAULT 0,
    has_add_to_cart INTEGER NOT NULL DEFAULT 0,
    has_purchase INTEGER NOT NULL DEFAULT 0,
    revenue REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_fact_sessions_experiment ON fact_sessions(experiment_id, event_date);
CREATE INDEX IF NOT EXISTS idx_fact_sessions_session ON fact_sessions(experiment_id, user_id, session_id);

CREATE TABLE IF NOT EXISTS daily_metrics (
    event_date TEXT NOT NULL,
    experiment_id TEXT NOT NULL,
    variant TEXT NOT NULL,
    is_experiment_period INTEGER NOT NULL,
    sessions INTEGER NOT NULL,
    sessions_with_impression INTEGER NOT NULL,
    sessions_with_click INTEGER NOT NULL,
    sessions_with_add_to_cart INTEGER NOT NULL,
    sessions_with_purchase INTEGER NOT NULL,
    revenue REAL NOT NULL,
    PRIMARY KEY (experiment_id, event_date, variant)
);

CREATE TABLE IF NOT EXISTS dq_checks (
    check_name TEXT PRIMARY KEY,
    observed INTEGER NOT NULL,
    threshold INTEGER NOT NULL,
    pass INTEGER NOT NULL
);
`

const rebuildDaily = `
INSERT INTO daily_metrics
SELECT
    event_date,
    experiment_id,
    variant,
    MAX(is_experiment_period),
    COUNT(*),
    SUM(has_impression),
    SUM(has_click),
    SUM(has_add_to_cart),
    SUM(has_purchase),
    SUM(revenue)
FROM fact_sessions
GROUP BY event_date, experiment_id, variant`

// dqChecks are evaluated against fact_sessions by Rebuild. atLeast checks
// pass when observed >= threshold, the rest when observed <= threshold.
var dqChecks = []struct {
	name      string
	query     string
	threshold int64
	atLeast   bool
}{
	{"facts_nonempty", `SELECT COUNT(*) FROM fact_sessions`, 1, true},
	{"no_empty_user_ids", `SELECT COUNT(*) FROM fact_sessions WHERE TRIM(user_id) = ''`, 0, false},
	{"no_empty_session_ids", `SELECT COUNT(*) FROM fact_sessions WHERE TRIM(session_id) = ''`, 0, false},
	{"no_duplicate_sessions", `SELECT COUNT(*) FROM (
		SELECT 1 FROM fact_sessions GROUP BY experiment_id, user_id, session_id HAVING COUNT(*) > 1)`, 0, false},
	{"revenue_nonnegative", `SELECT COUNT(*) FROM fact_sessions WHERE revenue < 0`, 0, false},
	{"funnel_consistent", `SELECT COUNT(*) FROM fact_sessions
		WHERE (has_purchase = 1 AND has_add_to_cart = 0)
		   OR (has_add_to_cart = 1 AND has_click = 0)
		   OR (has_purchase = 0 AND revenue > 0)`, 0, false},
}

// Open opens (creating if needed) the SQLite warehouse at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: enable WAL mode")
	}

	return &SQLite{db: db}, nil
}

// Migrate creates the warehouse relations if they do not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) CheckSchema(ctx context.Context) error {
	present := make(map[string]map[string]bool, len(relations))
	for _, name := range relationNames() {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", name))
		if err != nil {
			return eris.Wrapf(err, "sqlite: inspect %s", name)
		}
		cols := map[string]bool{}
		for rows.Next() {
			var (
				cid, notNull, pk int
				colName, colType string
				dflt             sql.NullString
			)
			if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return eris.Wrapf(err, "sqlite: scan %s columns", name)
			}
			cols[colName] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return eris.Wrapf(err, "sqlite: inspect %s", name)
		}
		present[name] = cols
	}
	return verifySchema(present)
}

// InsertSessions appends session facts in a single transaction.
func (s *SQLite) InsertSessions(ctx context.Context, facts []SessionFact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fact_sessions
		(user_id, session_id, experiment_id, variant, event_date, is_experiment_period,
		 has_impression, has_click, has_add_to_cart, has_purchase, revenue)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for _, f := range facts {
		_, err := stmt.ExecContext(ctx,
			f.UserID, f.SessionID, f.ExperimentID, f.Variant, f.EventDate.Format(DateLayout),
			f.ExperimentPeriod, f.Impression, f.Click, f.AddToCart, f.Purchase, f.Revenue.InexactFloat64(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert session %s/%s", f.UserID, f.SessionID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert")
}

// Rebuild re-materializes daily_metrics and dq_checks from fact_sessions.
func (s *SQLite) Rebuild(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin rebuild")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_metrics`); err != nil {
		return eris.Wrap(err, "sqlite: clear daily_metrics")
	}
	if _, err := tx.ExecContext(ctx, rebuildDaily); err != nil {
		return eris.Wrap(err, "sqlite: build daily_metrics")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dq_checks`); err != nil {
		return eris.Wrap(err, "sqlite: clear dq_checks")
	}
	for _, c := range dqChecks {
		var observed int64
		if err := tx.QueryRowContext(ctx, c.query).Scan(&observed); err != nil {
			return eris.Wrapf(err, "sqlite: evaluate %s", c.name)
		}
		pass := observed <= c.threshold
		if c.atLeast {
			pass = observed >= c.threshold
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dq_checks (check_name, observed, threshold, pass) VALUES (?, ?, ?, ?)`,
			c.name, observed, c.threshold, pass,
		); err != nil {
			return eris.Wrapf(err, "sqlite: record %s", c.name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit rebuild")
}

func (s *SQLite) Experiments(ctx context.Context) ([]ExperimentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT experiment_id, COUNT(*), COUNT(DISTINCT user_id), MIN(event_date), MAX(event_date)
		FROM fact_sessions
		GROUP BY experiment_id
		ORDER BY experiment_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list experiments")
	}
	defer rows.Close()

	var out []ExperimentSummary
	for rows.Next() {
		var e ExperimentSummary
		var first, last string
		if err := rows.Scan(&e.ID, &e.Sessions, &e.Users, &first, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan experiment")
		}
		if e.FirstDate, err = ParseDate(first); err != nil {
			return nil, err
		}
		if e.LastDate, err = ParseDate(last); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list experiments")
}

func (s *SQLite) SessionFacts(ctx context.Context, experimentID string, w Window) ([]SessionFact, error) {
	start, end := w.bounds()
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, session_id, experiment_id, variant, event_date, is_experiment_period,
		       has_impression, has_click, has_add_to_cart, has_purchase, revenue
		FROM fact_sessions
		WHERE experiment_id = ? AND event_date >= ? AND event_date <= ?
		ORDER BY event_date, user_id, session_id`,
		experimentID, start, end,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query facts for %s", experimentID)
	}
	defer rows.Close()

	var out []SessionFact
	for rows.Next() {
		var f SessionFact
		var date string
		var revenue float64
		if err := rows.Scan(&f.UserID, &f.SessionID, &f.ExperimentID, &f.Variant, &date, &f.ExperimentPeriod,
			&f.Impression, &f.Click, &f.AddToCart, &f.Purchase, &revenue); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		if f.EventDate, err = ParseDate(date); err != nil {
			return nil, err
		}
		f.Revenue = decimal.NewFromFloat(revenue)
		out = append(out, f)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: query facts for %s", experimentID)
}

func (s *SQLite) DailyRollups(ctx context.Context, experimentID string, w Window) ([]DailyRollup, error) {
	start, end := w.bounds()
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_date, experiment_id, variant, is_experiment_period, sessions,
		       sessions_with_impression, sessions_with_click, sessions_with_add_to_cart,
		       sessions_with_purchase, revenue
		FROM daily_metrics
		WHERE experiment_id = ? AND event_date >= ? AND event_date <= ?
		ORDER BY event_date, variant`,
		experimentID, start, end,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query daily metrics for %s", experimentID)
	}
	defer rows.Close()

	var out []DailyRollup
	for rows.Next() {
		var r DailyRollup
		var date string
		var revenue float64
		if err := rows.Scan(&date, &r.ExperimentID, &r.Variant, &r.ExperimentPeriod, &r.Sessions,
			&r.Impressions, &r.Clicks, &r.AddToCarts, &r.Purchases, &revenue); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan daily metric")
		}
		if r.EventDate, err = ParseDate(date); err != nil {
			return nil, err
		}
		r.Revenue = decimal.NewFromFloat(revenue)
		out = append(out, r)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: query daily metrics for %s", experimentID)
}

func (s *SQLite) DataQualityChecks(ctx context.Context) ([]DQCheck, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT check_name, observed, threshold, pass FROM dq_checks ORDER BY check_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query dq checks")
	}
	defer rows.Close()

	var out []DQCheck
	for rows.Next() {
		var c DQCheck
		if err := rows.Scan(&c.Name, &c.Observed, &c.Threshold, &c.Pass); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dq check")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query dq checks")
}
