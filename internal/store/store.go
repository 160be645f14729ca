// Package store archives snapshots to SQLite. The archive is a record of
// past builds for retention and offline inspection; queries always run
// against the in-memory snapshot, and every archived row is recomputable
// from the source datasets.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// timeLayout is fixed-width, unlike RFC3339Nano, so archived timestamps
// compare lexicographically in ORDER BY and range scans.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps the archive database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the archive at path and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			built_at TEXT NOT NULL,
			granularity TEXT NOT NULL,
			engagement_weight REAL NOT NULL,
			sentiment_weight REAL NOT NULL,
			social_records INTEGER NOT NULL,
			env_records INTEGER NOT NULL,
			joined_metrics INTEGER NOT NULL,
			coverage_gaps INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS social_records (
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			post_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			raw_region TEXT NOT NULL,
			region_code TEXT NOT NULL,
			time_bucket TEXT NOT NULL,
			hashtags TEXT NOT NULL,
			sentiment_score REAL NOT NULL,
			engagement_count INTEGER NOT NULL,
			text TEXT,
			PRIMARY KEY (snapshot_id, post_id)
		)`,
		`CREATE TABLE IF NOT EXISTS env_records (
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			region_code TEXT NOT NULL,
			time_bucket TEXT NOT NULL,
			indicator TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT,
			UNIQUE (snapshot_id, region_code, time_bucket, indicator)
		)`,
		`CREATE TABLE IF NOT EXISTS joined_metrics (
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			region_code TEXT NOT NULL,
			time_bucket TEXT NOT NULL,
			theme TEXT NOT NULL,
			indicator TEXT NOT NULL,
			activism_score REAL NOT NULL,
			env_value REAL NOT NULL,
			unit TEXT,
			sample_size INTEGER NOT NULL,
			total_engagement INTEGER NOT NULL,
			mean_sentiment REAL NOT NULL,
			PRIMARY KEY (snapshot_id, region_code, time_bucket, theme, indicator)
		)`,
		`CREATE TABLE IF NOT EXISTS coverage_gaps (
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			region_code TEXT NOT NULL,
			time_bucket TEXT NOT NULL,
			missing TEXT NOT NULL,
			present_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			snapshot_id TEXT PRIMARY KEY REFERENCES snapshots(id) ON DELETE CASCADE,
			report TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_joined_metrics_region
			ON joined_metrics(snapshot_id, region_code)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

// Save archives the snapshot in one transaction. Re-saving an ID replaces
// the earlier archive of that snapshot; the foreign keys cascade the old
// child rows away.
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots
			(id, built_at, granularity, engagement_weight, sentiment_weight,
			 social_records, env_records, joined_metrics, coverage_gaps)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.BuiltAt.UTC().Format(timeLayout), string(snap.Granularity),
		snap.Weights.Engagement, snap.Weights.Sentiment,
		len(snap.Social), len(snap.Env), len(snap.Metrics), len(snap.Gaps),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := s.saveSocial(ctx, tx, snap); err != nil {
		return err
	}
	if err := s.saveEnv(ctx, tx, snap); err != nil {
		return err
	}
	if err := s.saveMetrics(ctx, tx, snap); err != nil {
		return err
	}
	if err := s.saveGaps(ctx, tx, snap); err != nil {
		return err
	}

	report, err := json.Marshal(snap.Diagnostics)
	if err != nil {
		return fmt.Errorf("serialize diagnostics: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO diagnostics (snapshot_id, report) VALUES (?, ?)`,
		snap.ID, string(report),
	); err != nil {
		return fmt.Errorf("insert diagnostics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive transaction: %w", err)
	}

	s.logger.Info("snapshot archived",
		"snapshot_id", snap.ID,
		"social_records", len(snap.Social),
		"env_records", len(snap.Env),
		"joined_metrics", len(snap.Metrics),
	)
	return nil
}

func (s *Store) saveSocial(ctx context.Context, tx *sql.Tx, snap *domain.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO social_records
			(snapshot_id, post_id, ts, raw_region, region_code, time_bucket,
			 hashtags, sentiment_score, engagement_count, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare social insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range snap.Social {
		hashtags, err := json.Marshal(rec.Hashtags)
		if err != nil {
			return fmt.Errorf("serialize hashtags for %s: %w", rec.PostID, err)
		}
		_, err = stmt.ExecContext(ctx,
			snap.ID, rec.PostID, rec.Timestamp.UTC().Format(timeLayout),
			rec.RawRegion, rec.RegionCode, rec.TimeBucket,
			string(hashtags), rec.SentimentScore, rec.EngagementCount, rec.Text,
		)
		if err != nil {
			return fmt.Errorf("insert social record %s: %w", rec.PostID, err)
		}
	}
	return nil
}

func (s *Store) saveEnv(ctx context.Context, tx *sql.Tx, snap *domain.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO env_records
			(snapshot_id, region_code, time_bucket, indicator, value, unit)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare env insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range snap.Env {
		_, err = stmt.ExecContext(ctx,
			snap.ID, rec.RegionCode, rec.TimeBucket, rec.IndicatorName, rec.Value, rec.Unit,
		)
		if err != nil {
			return fmt.Errorf("insert env record (%s, %s, %s): %w",
				rec.RegionCode, rec.TimeBucket, rec.IndicatorName, err)
		}
	}
	return nil
}

func (s *Store) saveMetrics(ctx context.Context, tx *sql.Tx, snap *domain.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO joined_metrics
			(snapshot_id, region_code, time_bucket, theme, indicator,
			 activism_score, env_value, unit, sample_size, total_engagement, mean_sentiment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare metric insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range snap.Metrics {
		_, err = stmt.ExecContext(ctx,
			snap.ID, m.RegionCode, m.TimeBucket, m.Theme, m.Indicator,
			m.ActivismScore, m.EnvValue, m.Unit, m.SampleSize, m.TotalEngagement, m.MeanSentiment,
		)
		if err != nil {
			return fmt.Errorf("insert joined metric (%s, %s, %s, %s): %w",
				m.RegionCode, m.TimeBucket, m.Theme, m.Indicator, err)
		}
	}
	return nil
}

func (s *Store) saveGaps(ctx context.Context, tx *sql.Tx, snap *domain.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO coverage_gaps
			(snapshot_id, region_code, time_bucket, missing, present_count)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare gap insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range snap.Gaps {
		_, err = stmt.ExecContext(ctx,
			snap.ID, g.RegionCode, g.TimeBucket, g.Missing, g.PresentCount,
		)
		if err != nil {
			return fmt.Errorf("insert coverage gap (%s, %s): %w", g.RegionCode, g.TimeBucket, err)
		}
	}
	return nil
}

// SnapshotInfo is one row of the archive listing.
type SnapshotInfo struct {
	ID            string    `json:"id"`
	BuiltAt       time.Time `json:"built_at"`
	Granularity   string    `json:"granularity"`
	SocialRecords int       `json:"social_records"`
	EnvRecords    int       `json:"env_records"`
	JoinedMetrics int       `json:"joined_metrics"`
	CoverageGaps  int       `json:"coverage_gaps"`
}

// Snapshots lists archived snapshots, newest first.
func (s *Store) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, built_at, granularity, social_records, env_records, joined_metrics, coverage_gaps
		 FROM snapshots ORDER BY built_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var builtAt string
		if err := rows.Scan(&info.ID, &builtAt, &info.Granularity,
			&info.SocialRecords, &info.EnvRecords, &info.JoinedMetrics, &info.CoverageGaps); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		info.BuiltAt, err = time.Parse(timeLayout, builtAt)
		if err != nil {
			return nil, fmt.Errorf("parse built_at for %s: %w", info.ID, err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

// LatestSnapshotID returns the most recently built archived snapshot, or an
// empty string when the archive is empty.
func (s *Store) LatestSnapshotID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots ORDER BY built_at DESC, id LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest snapshot: %w", err)
	}
	return id, nil
}

// PruneBefore deletes snapshots built before the cutoff and returns how many
// were removed. Child rows cascade.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE built_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned archived snapshots", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}
