package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres is the production Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	// DSN is the postgres connection string. Required.
	DSN string

	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
}

// NewPostgres opens the pool, verifies connectivity, and applies pending
// migrations.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLife
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// migrate applies the embedded goose migrations through a database/sql
// adapter over the pool's config.
func migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping verifies connectivity, for readiness probes.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) GetProfile(ctx context.Context, id string) (*Profile, error) {
	query := `
        SELECT id, email, display_name, credit_seconds, plan, created_at
        FROM profiles
        WHERE id = $1
    `
	profile := &Profile{}
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.DisplayName,
		&profile.CreditSeconds,
		&profile.Plan,
		&profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

func (p *Postgres) EnsureProfile(ctx context.Context, profile Profile) (*Profile, error) {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	if profile.Plan == "" {
		profile.Plan = "free"
	}
	query := `
        INSERT INTO profiles (id, email, display_name, credit_seconds, plan, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
        RETURNING id, email, display_name, credit_seconds, plan, created_at
    `
	out := &Profile{}
	err := p.pool.QueryRow(ctx, query,
		profile.ID,
		profile.Email,
		profile.DisplayName,
		profile.CreditSeconds,
		profile.Plan,
		profile.CreatedAt,
	).Scan(&out.ID, &out.Email, &out.DisplayName, &out.CreditSeconds, &out.Plan, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return out, nil
}

func (p *Postgres) UpdateCredits(ctx context.Context, id string, seconds int) error {
	if seconds < 0 {
		seconds = 0
	}
	query := `
        UPDATE profiles
        SET credit_seconds = $1, updated_at = NOW()
        WHERE id = $2
    `
	tag, err := p.pool.Exec(ctx, query, seconds, id)
	if err != nil {
		return fmt.Errorf("update credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AppendSessionRecord(ctx context.Context, rec *SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO session_records (
            id, user_id, avatar_name, started_at, duration_seconds, transcript,
            overall_score, vocabulary_score, grammar_score, pronunciation_score,
            fluency_rating, feedback
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := p.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.AvatarName,
		rec.StartedAt,
		rec.DurationSeconds,
		rec.Transcript,
		rec.OverallScore,
		rec.VocabularyScore,
		rec.GrammarScore,
		rec.PronunciationScore,
		rec.FluencyRating,
		rec.Feedback,
	)
	if err != nil {
		return fmt.Errorf("append session record: %w", err)
	}
	return nil
}

func (p *Postgres) ListSessionRecords(ctx context.Context, userID string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, user_id, avatar_name, started_at, duration_seconds, transcript,
               overall_score, vocabulary_score, grammar_score, pronunciation_score,
               fluency_rating, feedback
        FROM session_records
        WHERE user_id = $1
        ORDER BY started_at DESC
        LIMIT $2
    `
	rows, err := p.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.AvatarName,
			&rec.StartedAt,
			&rec.DurationSeconds,
			&rec.Transcript,
			&rec.OverallScore,
			&rec.VocabularyScore,
			&rec.GrammarScore,
			&rec.PronunciationScore,
			&rec.FluencyRating,
			&rec.Feedback,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
