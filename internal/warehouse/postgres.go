package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Pool is the subset of pgxpool.Pool used by Postgres, so a mock pool can
// stand in for tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Postgres reads the warehouse relations from a Postgres database populated
// by the upstream pipeline. It never writes.
type Postgres struct {
	pool Pool
}

// NewPostgres connects a pool to the warehouse at connString.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) CheckSchema(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ANY($1)`,
		relationNames(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: inspect schema")
	}
	defer rows.Close()

	present := map[string]map[string]bool{}
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return eris.Wrap(err, "postgres: scan column")
		}
		if present[table] == nil {
			present[table] = map[string]bool{}
		}
		present[table][column] = true
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: inspect schema")
	}
	return verifySchema(present)
}

func (p *Postgres) Experiments(ctx context.Context) ([]ExperimentSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT experiment_id, COUNT(*), COUNT(DISTINCT user_id), MIN(event_date), MAX(event_date)
		FROM fact_sessions
		GROUP BY experiment_id
		ORDER BY experiment_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list experiments")
	}
	defer rows.Close()

	var out []ExperimentSummary
	for rows.Next() {
		var e ExperimentSummary
		var sessions, users int64
		if err := rows.Scan(&e.ID, &sessions, &users, &e.FirstDate, &e.LastDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan experiment")
		}
		e.Sessions, e.Users = int(sessions), int(users)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list experiments")
}

func (p *Postgres) SessionFacts(ctx context.Context, experimentID string, w Window) ([]SessionFact, error) {
	start, end := w.bounds()
	rows, err := p.pool.Query(ctx, `
		SELECT user_id::text, session_id::text, experiment_id, variant, event_date, is_experiment_period,
		       has_impression, has_click, has_add_to_cart, has_purchase, revenue::text
		FROM fact_sessions
		WHERE experiment_id = $1 AND event_date BETWEEN $2::date AND $3::date
		ORDER BY event_date, user_id, session_id`,
		experimentID, start, end,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query facts for %s", experimentID)
	}
	defer rows.Close()

	var out []SessionFact
	for rows.Next() {
		var f SessionFact
		var revenue string
		if err := rows.Scan(&f.UserID, &f.SessionID, &f.ExperimentID, &f.Variant, &f.EventDate, &f.ExperimentPeriod,
			&f.Impression, &f.Click, &f.AddToCart, &f.Purchase, &revenue); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		if f.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, eris.Wrapf(err, "postgres: revenue for session %s", f.SessionID)
		}
		out = append(out, f)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: query facts for %s", experimentID)
}

func (p *Postgres) DailyRollups(ctx context.Context, experimentID string, w Window) ([]DailyRollup, error) {
	start, end := w.bounds()
	rows, err := p.pool.Query(ctx, `
		SELECT event_date, experiment_id, variant, is_experiment_period::int = 1, sessions,
		       sessions_with_impression, sessions_with_click, sessions_with_add_to_cart,
		       sessions_with_purchase, revenue::text
		FROM daily_metrics
		WHERE experiment_id = $1 AND event_date BETWEEN $2::date AND $3::date
		ORDER BY event_date, variant`,
		experimentID, start, end,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query daily metrics for %s", experimentID)
	}
	defer rows.Close()

	var out []DailyRollup
	for rows.Next() {
		var r DailyRollup
		var sessions, impressions, clicks, carts, purchases int64
		var revenue string
		if err := rows.Scan(&r.EventDate, &r.ExperimentID, &r.Variant, &r.ExperimentPeriod, &sessions,
			&impressions, &clicks, &carts, &purchases, &revenue); err != nil {
			return nil, eris.Wrap(err, "postgres: scan daily metric")
		}
		r.Sessions, r.Impressions, r.Clicks = int(sessions), int(impressions), int(clicks)
		r.AddToCarts, r.Purchases = int(carts), int(purchases)
		if r.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, eris.Wrapf(err, "postgres: revenue for %s", r.EventDate.Format(DateLayout))
		}
		out = append(out, r)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: query daily metrics for %s", experimentID)
}

func (p *Postgres) DataQualityChecks(ctx context.Context) ([]DQCheck, error) {
	rows, err := p.pool.Query(ctx, `SELECT check_name, observed, threshold, pass FROM dq_checks ORDER BY check_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query dq checks")
	}
	defer rows.Close()

	var out []DQCheck
	for rows.Next() {
		var c DQCheck
		if err := rows.Scan(&c.Name, &c.Observed, &c.Threshold, &c.Pass); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dq check")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query dq checks")
}
