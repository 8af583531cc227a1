package order

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"SpotSentinel/internal/model"
)

// Header is the order log column layout.
var Header = []string{
	"submitted_at", "order_id", "client_order_id", "symbol", "side", "type",
	"price", "quantity", "status", "transact_time",
}

// logFile is the subset of *os.File the log needs.
type logFile interface {
	io.Writer
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// CSVLog is an append-only order log. Every Append is flushed and synced
// to disk before it returns. A failed Append leaves the file as it was.
type CSVLog struct {
	mu   sync.Mutex
	path string
	file logFile
	w    *csv.Writer
}

// OpenCSVLog opens or creates the log at path. The header is written only
// when the file is empty, so restarts keep appending to the same table.
func OpenCSVLog(path string) (*CSVLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create order log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open order log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat order log: %w", err)
	}

	l := &CSVLog{path: path, file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.write(Header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write order log header: %w", err)
		}
	}
	return l, nil
}

// Path returns the file backing the log.
func (l *CSVLog) Path() string { return l.path }

// Append writes one row for res.
func (l *CSVLog) Append(res *model.OrderResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(Row(res))
}

func (l *CSVLog) write(record []string) error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat order log: %w", err)
	}
	if err := l.flush(record); err != nil {
		// csv.Writer keeps its first error; drop any partial row and start
		// over with a fresh writer.
		if terr := l.file.Truncate(info.Size()); terr != nil {
			err = fmt.Errorf("%w (truncate: %v)", err, terr)
		}
		l.w = csv.NewWriter(l.file)
		return err
	}
	return nil
}

func (l *CSVLog) flush(record []string) error {
	if err := l.w.Write(record); err != nil {
		return err
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close flushes and closes the file.
func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

// Row renders res in Header order.
func Row(res *model.OrderResult) []string {
	return []string{
		formatTime(res.SubmittedAt),
		res.OrderID,
		res.ClientOrderID,
		res.Symbol,
		string(res.Side),
		string(res.Type),
		res.Price,
		res.Quantity,
		res.Status,
		formatTime(res.TransactTime),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
