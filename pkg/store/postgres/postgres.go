package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"approval-ledger/pkg/store"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore keeps every collection in one JSONB table keyed by
// (collection, id). Updates merge with the jsonb || operator in a single
// statement, which gives the single-document atomicity the workflow needs.
type PostgresStore struct {
	db    *sql.DB
	table string
	name  string
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// DSN, when set, is used instead of the discrete fields above.
	DSN string

	// Table holds all documents. Defaults to "records".
	Table string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns default PostgreSQL configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "approval_ledger",
		SSLMode:         "disable",
		Table:           "records",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// ConnString returns the lib/pq connection string.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

var tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// NewPostgresStore opens a connection pool, pings the server and creates
// the documents table if needed.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	if cfg.Table == "" {
		cfg.Table = "records"
	}
	if !tablePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", cfg.Table)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w: %w", store.ErrUnavailable, err)
	}

	s := &PostgresStore{db: db, table: cfg.Table, name: "postgres"}
	if err := s.initTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) initTables(ctx context.Context) error {
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			seq BIGSERIAL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created_by ON %s (collection, (data->>'createdBy'))`, s.table, s.table),
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// Get returns one document.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := store.ValidateKey(collection, id); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE collection = $1 AND id = $2`, s.table)

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}

	return decode(raw)
}

// Query returns matching documents in insertion order.
func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return nil, err
	}

	query, args := buildQuery(s.table, collection, filters)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]store.Record, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, store.Record{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// buildQuery renders equality filters as data->>$n = $m so field names
// are never interpolated into SQL.
func buildQuery(table, collection string, filters []store.Filter) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT id, data FROM %s WHERE collection = $1`, table)

	args := []interface{}{collection}
	for _, f := range filters {
		args = append(args, f.Field, fmt.Sprint(f.Value))
		fmt.Fprintf(&b, ` AND data->>$%d = $%d`, len(args)-1, len(args))
	}
	b.WriteString(` ORDER BY seq`)

	return b.String(), args
}

// Insert writes a document, overwriting any existing one with the same id.
func (s *PostgresStore) Insert(ctx context.Context, collection, id string, doc store.Document) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if err := store.ValidateKey(collection, id); err != nil {
		return "", err
	}

	raw, err := encode(doc)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query, collection, id, raw); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}

	return id, nil
}

// Update merges fields into the stored document.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields store.Document) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}

	raw, err := encode(fields)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, s.table)

	res, err := s.db.ExecContext(ctx, query, collection, id, raw)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Delete removes a document.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name returns the backend name.
func (s *PostgresStore) Name() string {
	return s.name
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func encode(doc store.Document) ([]byte, error) {
	if doc == nil {
		doc = store.Document{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidDocument, err)
	}
	return raw, nil
}

// decode keeps numbers as json.Number so decimal amounts survive unchanged.
func decode(raw []byte) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc store.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidDocument, err)
	}
	if doc == nil {
		doc = store.Document{}
	}
	return doc, nil
}
