package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"SpotSentinel/internal/model"
)

// SQLiteRecorder persists the cycle journal to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *logrus.Entry) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so external readers do not block the bot's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logger.WithField("component", "recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT,
			price       REAL,
			ema         REAL,
			rsi         REAL,
			reference   REAL,
			decision    TEXT,
			reason      TEXT,
			outcome     TEXT,
			order_id    TEXT,
			error_stage TEXT,
			error       TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			order_id        TEXT NOT NULL,
			client_order_id TEXT,
			symbol          TEXT,
			side            TEXT,
			type            TEXT,
			price           TEXT,
			quantity        TEXT,
			status          TEXT,
			transact_time   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_ts ON orders(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(rec *CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO cycles
		(timestamp, symbol, price, ema, rsi, reference, decision, reason,
		 outcome, order_id, error_stage, error, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ts.UnixMilli(), rec.Symbol, rec.Price,
		nullable(rec.Indicators.EMA), nullable(rec.Indicators.RSI), nullable(rec.Indicators.Reference),
		string(rec.Decision), rec.Reason, rec.Outcome, rec.OrderID,
		rec.ErrorStage, rec.Error, rec.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecordOrder(res *model.OrderResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var transact sql.NullInt64
	if !res.TransactTime.IsZero() {
		transact = sql.NullInt64{Int64: res.TransactTime.UnixMilli(), Valid: true}
	}
	_, err := r.db.Exec(`INSERT INTO orders
		(timestamp, order_id, client_order_id, symbol, side, type, price, quantity, status, transact_time)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		res.SubmittedAt.UnixMilli(), res.OrderID, res.ClientOrderID, res.Symbol,
		string(res.Side), string(res.Type), res.Price, res.Quantity, res.Status, transact,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
