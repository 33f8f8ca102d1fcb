// Package sqlstore implements repositories.Registry on PostgreSQL or SQLite
// through bun. Postgres deployments share changes between processes with
// LISTEN/NOTIFY; SQLite is single-process and fans changes out in memory.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
	"github.com/almarpuit/site/internal/repositories/changehub"
)

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// NotifyChannel is the Postgres channel carrying JSON encoded domain.Change values.
const NotifyChannel = "content_changes"

const (
	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
)

// Store is a repositories.Registry backed by a SQL database.
type Store struct {
	db       *bun.DB
	dialect  string
	hub      *changehub.Hub
	listener *listener
	logger   *zap.Logger
	now      func() time.Time
}

var _ repositories.Registry = (*Store)(nil)

// Option customises the store.
type Option func(*Store)

// WithLogger sets the logger used for feed diagnostics and query logging.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the database. dialect is DialectPostgres or DialectSQLite.
func Open(ctx context.Context, dialect, dsn string, opts ...Option) (*Store, error) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	driverName := dialect
	if dialect == DialectPostgres {
		driverName = "pgx"
	} else if dialect != DialectSQLite {
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	sqlDB.SetConnMaxLifetime(defaultConnMaxLifetime)
	if dialect == DialectSQLite {
		// An in-memory database exists per connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(defaultMaxOpenConns)
	}

	var db *bun.DB
	if dialect == DialectPostgres {
		db = bun.NewDB(sqlDB, pgdialect.New())
	} else {
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		hub:     changehub.New(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	db.AddQueryHook(queryLogger{logger: s.logger})

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrap("ping", err)
	}
	if dialect == DialectPostgres {
		s.listener = newListener(dsn, s.hub, s.logger)
	}
	return s, nil
}

// DB exposes the bun handle for schema tooling.
func (s *Store) DB() *bun.DB { return s.db }

// Dialect reports the active dialect.
func (s *Store) Dialect() string { return s.dialect }

// Close stops the change listener and closes the pool.
func (s *Store) Close(context.Context) error {
	if s.listener != nil {
		s.listener.stop()
	}
	return s.db.Close()
}

func (s *Store) Sections() repositories.SectionRepository         { return sectionRepo{s} }
func (s *Store) Translations() repositories.TranslationRepository { return translationRepo{s} }
func (s *Store) Images() repositories.ImageRepository             { return imageRepo{s} }
func (s *Store) Milestones() repositories.MilestoneRepository     { return milestoneRepo{s} }
func (s *Store) Requirements() repositories.RequirementRepository { return requirementRepo{s} }
func (s *Store) Settings() repositories.SettingsRepository        { return settingsRepo{s} }
func (s *Store) Health() repositories.HealthRepository            { return s }

// Changes returns the change feed. On Postgres the first subscription starts
// the LISTEN connection.
func (s *Store) Changes() repositories.ChangeFeed {
	if s.listener != nil {
		return s.listener
	}
	return s.hub
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// publish announces a committed write. Failures to notify are logged; the
// write itself has already succeeded.
func (s *Store) publish(ctx context.Context, table domain.Table, op domain.ChangeOp, sectionID, key string) {
	change := domain.Change{Table: table, Op: op, SectionID: sectionID, Key: key, At: s.timestamp()}
	if s.dialect != DialectPostgres {
		s.hub.Publish(change)
		return
	}
	payload, err := json.Marshal(change)
	if err != nil {
		s.logger.Warn("sqlstore: encode change", zap.Error(err))
		return
	}
	if _, err := s.db.NewRaw("SELECT pg_notify(?, ?)", NotifyChannel, string(payload)).Exec(ctx); err != nil {
		s.logger.Warn("sqlstore: notify change", zap.String("table", string(table)), zap.Error(err))
	}
}

// touch bumps the section's updated_at inside the write transaction.
func (s *Store) touch(ctx context.Context, db bun.IDB, sectionID string) error {
	_, err := db.NewUpdate().
		Model((*sectionModel)(nil)).
		Set("updated_at = ?", s.timestamp()).
		Where("id = ?", sectionID).
		Exec(ctx)
	return err
}

type queryLogger struct {
	logger *zap.Logger
}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if ce := h.logger.Check(zap.DebugLevel, "sqlstore: query"); ce != nil {
		fields := []zap.Field{
			zap.String("operation", event.Operation()),
			zap.Duration("duration", time.Since(event.StartTime)),
		}
		if event.Err != nil && event.Err != sql.ErrNoRows {
			fields = append(fields, zap.Error(event.Err))
		}
		ce.Write(fields...)
	}
}
