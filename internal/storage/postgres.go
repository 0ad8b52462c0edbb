package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facepos/internal/config"
	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/signature"
)

// ErrDuplicateIdentity reports an enrollment whose email already exists.
// Uniqueness is enforced by the database, not by a local lookup, so two
// concurrent enrollments of the same email cannot both succeed.
var ErrDuplicateIdentity = errors.New("identity with this email already exists")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist. The embedding column
// needs the pgvector extension.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS identities (
			id                 UUID PRIMARY KEY,
			display_name       TEXT NOT NULL,
			email              TEXT NOT NULL UNIQUE,
			phone              TEXT NOT NULL DEFAULT '',
			face_data          TEXT NOT NULL DEFAULT '',
			embedding          vector(128),
			thumbnail_key      TEXT NOT NULL DEFAULT '',
			enrolled_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_recognized_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id             UUID PRIMARY KEY,
			identity_id    UUID REFERENCES identities(id) ON DELETE SET NULL,
			lines          JSONB NOT NULL,
			total          DOUBLE PRECISION NOT NULL,
			payment_method TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_identity ON orders (identity_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Identities ---

// ListIdentities returns the full gallery in a stable order (enrollment
// time, then id). Capture sessions snapshot this once at start.
func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name, email, phone, face_data, thumbnail_key, enrolled_at, last_recognized_at
		 FROM identities ORDER BY enrolled_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(&id.ID, &id.DisplayName, &id.Email, &id.Phone,
			&id.FaceData, &id.ThumbnailKey, &id.EnrolledAt, &id.LastRecognizedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, id)
	}
	return identities, nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	ident := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, display_name, email, phone, face_data, thumbnail_key, enrolled_at, last_recognized_at
		 FROM identities WHERE id = $1`, id,
	).Scan(&ident.ID, &ident.DisplayName, &ident.Email, &ident.Phone,
		&ident.FaceData, &ident.ThumbnailKey, &ident.EnrolledAt, &ident.LastRecognizedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}

// CreateIdentity persists a new enrollment. sig may be nil when the
// customer skipped biometric capture.
func (s *PostgresStore) CreateIdentity(ctx context.Context, profile models.Profile, sig signature.Signature, thumbnailKey string) (*models.Identity, error) {
	ident := &models.Identity{
		ID:           uuid.New(),
		DisplayName:  profile.DisplayName,
		Email:        profile.Email,
		Phone:        profile.Phone,
		ThumbnailKey: thumbnailKey,
	}

	var vec *pgvector.Vector
	if len(sig) > 0 {
		ident.FaceData = signature.Encode(sig)
		v := pgvector.NewVector(sig)
		vec = &v
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, display_name, email, phone, face_data, embedding, thumbnail_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING enrolled_at`,
		ident.ID, ident.DisplayName, ident.Email, ident.Phone, ident.FaceData, vec, ident.ThumbnailKey,
	).Scan(&ident.EnrolledAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return ident, nil
}

// DeleteIdentity removes the record and returns the thumbnail key that
// was stored with it so the caller can delete the object as well.
func (s *PostgresStore) DeleteIdentity(ctx context.Context, id uuid.UUID) (string, error) {
	var thumbnailKey string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM identities WHERE id = $1 RETURNING thumbnail_key`, id,
	).Scan(&thumbnailKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("identity not found")
		}
		return "", fmt.Errorf("delete identity: %w", err)
	}
	return thumbnailKey, nil
}

func (s *PostgresStore) UpdateLastRecognized(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE identities SET last_recognized_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update last recognized: %w", err)
	}
	return nil
}

// UpdateContact changes the mutable profile fields of an identity.
func (s *PostgresStore) UpdateContact(ctx context.Context, id uuid.UUID, profile models.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET display_name = $1, email = $2, phone = $3 WHERE id = $4`,
		profile.DisplayName, profile.Email, profile.Phone, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("update contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity not found")
	}
	return nil
}

// SearchMatch is one result of a server-side similarity search.
type SearchMatch struct {
	IdentityID  uuid.UUID `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	Score       float32   `json:"score"`
}

// SearchIdentities runs a cosine-similarity search over the stored
// embeddings. This serves the API search endpoint; live capture sessions
// match locally against their gallery snapshot instead.
func (s *PostgresStore) SearchIdentities(ctx context.Context, sig signature.Signature, threshold float64, limit int) ([]SearchMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(sig)

	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name, 1 - (embedding <=> $1) AS score
		 FROM identities
		 WHERE embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search identities: %w", err)
	}
	defer rows.Close()

	var matches []SearchMatch
	for rows.Next() {
		var m SearchMatch
		if err := rows.Scan(&m.IdentityID, &m.DisplayName, &m.Score); err != nil {
			return nil, fmt.Errorf("scan search match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// --- Orders ---

func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("marshal order lines: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO orders (id, lines, total, payment_method, identity_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, lines, order.Total, order.PaymentMethod, order.IdentityID, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// ListOrders returns orders most-recent-first. A nil identityID lists
// every order, including guest checkouts.
func (s *PostgresStore) ListOrders(ctx context.Context, identityID *uuid.UUID) ([]models.Order, error) {
	query := `SELECT id, lines, total, payment_method, identity_id, created_at
		 FROM orders ORDER BY created_at DESC`
	args := []interface{}{}
	if identityID != nil {
		query = `SELECT id, lines, total, payment_method, identity_id, created_at
			 FROM orders WHERE identity_id = $1 ORDER BY created_at DESC`
		args = append(args, *identityID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var lines []byte
		if err := rows.Scan(&o.ID, &lines, &o.Total, &o.PaymentMethod, &o.IdentityID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal(lines, &o.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal order lines: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}
