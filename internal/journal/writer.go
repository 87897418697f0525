package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"hl-action-kit/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Status string

const (
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusSignFailed Status = "sign_failed"
)

// Entry is one signing/submission attempt.
type Entry struct {
	Time       time.Time
	Network    string
	ActionType string
	Nonce      uint64
	Signer     string
	Vault      string
	Status     Status
	Error      string
}

// Writer appends entries to a Postgres (optionally Timescale) table from a
// bounded queue. Enqueue never blocks; entries are dropped when the queue is
// full.
type Writer struct {
	db      *sql.DB
	log     *zap.Logger
	schema  string
	entries chan Entry
	started atomic.Bool
	dropped atomic.Uint64
}

func New(cfg config.JournalConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("journal dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := newWriter(db, log, schema, cfg.QueueSize)
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func newWriter(db *sql.DB, log *zap.Logger, schema string, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		db:      db,
		log:     log,
		schema:  schema,
		entries: make(chan Entry, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

// Close drains queued entries and closes the database.
func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	w.drain(context.Background())
	return w.db.Close()
}

func (w *Writer) Enqueue(entry Entry) {
	if w == nil {
		return
	}
	select {
	case w.entries <- entry:
	default:
		if w.dropped.Add(1) == 1 {
			w.log.Warn("journal queue full")
		}
	}
}

func (w *Writer) Dropped() uint64 {
	if w == nil {
		return 0
	}
	return w.dropped.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-w.entries:
			w.write(ctx, entry)
		}
	}
}

func (w *Writer) drain(ctx context.Context) {
	for {
		select {
		case entry := <-w.entries:
			w.write(ctx, entry)
		default:
			return
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("journal db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		network TEXT NOT NULL,
		action_type TEXT NOT NULL,
		nonce BIGINT NOT NULL,
		signer TEXT NOT NULL,
		vault TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	)`, w.table("signed_actions"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("signed_actions"))); err != nil {
		w.log.Warn("signed_actions hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) write(ctx context.Context, entry Entry) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, network, action_type, nonce, signer, vault, status, error
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8
	)`, w.table("signed_actions"))
	if _, err := w.db.ExecContext(ctx, query,
		entry.Time,
		entry.Network,
		entry.ActionType,
		int64(entry.Nonce),
		entry.Signer,
		entry.Vault,
		string(entry.Status),
		entry.Error,
	); err != nil {
		w.log.Warn("journal insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
