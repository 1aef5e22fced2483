// Package pipeline validates, de-duplicates and writes exported result rows.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-psdeals/config"
	"github.com/aluiziolira/go-scrape-psdeals/models"
	"github.com/aluiziolira/go-scrape-psdeals/parser"
)

var (
	// ErrPipelineClosed is returned when Export is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(rows []models.SearchResultRow) error
	Close() error
	Validate() error
}

// Exporter coordinates validation, de-duplication and batched writing of
// result rows. Rows reach the writer in the order they were exported.
type Exporter struct {
	writer    OutputWriter
	batchSize int
	seen      *lru.Cache[string, struct{}]

	metrics metrics

	mu     sync.Mutex // guards closed/err and serialises Export
	closed bool
	err    error
}

// NewExporter builds an exporter sized from cfg.
func NewExporter(writer OutputWriter, cfg *config.Config) (*Exporter, error) {
	if writer == nil {
		return nil, fmt.Errorf("output writer cannot be nil")
	}
	batchSize, dedupeSize := 64, 10000
	if cfg != nil {
		if cfg.BatchSize > 0 {
			batchSize = cfg.BatchSize
		}
		if cfg.DedupeMaxSize > 0 {
			dedupeSize = cfg.DedupeMaxSize
		}
	}

	seen, err := lru.New[string, struct{}](dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	return &Exporter{
		writer:    writer,
		batchSize: batchSize,
		seen:      seen,
		metrics:   newMetrics(),
	}, nil
}

// Export writes rows in batches. Invalid and already exported rows are
// counted and skipped.
func (e *Exporter) Export(rows []models.SearchResultRow) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return e.err
	}
	if e.closed {
		return ErrPipelineClosed
	}

	batch := make([]models.SearchResultRow, 0, e.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.writer.Write(batch); err != nil {
			return err
		}
		e.metrics.addExported(len(batch))
		batch = batch[:0]
		return nil
	}

	for i := range rows {
		row, ok := e.prepare(rows[i])
		if !ok {
			continue
		}
		batch = append(batch, row)
		if len(batch) >= e.batchSize {
			if err := flush(); err != nil {
				e.err = fmt.Errorf("write batch: %w", err)
				return e.err
			}
		}
	}

	if err := flush(); err != nil {
		e.err = fmt.Errorf("write batch: %w", err)
		return e.err
	}
	return nil
}

// Close closes the writer and prevents more exports.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.err
	}
	e.closed = true

	if err := e.writer.Close(); err != nil && e.err == nil {
		e.err = fmt.Errorf("close writer: %w", err)
	}

	snapshot := e.metrics.snapshot()
	slog.Info("export finished",
		slog.Int64("exported_rows", snapshot["exported_rows"].(int64)),
		slog.Any("validation_errors", snapshot["validation_errors"]),
	)
	return e.err
}

// Err returns the first error encountered during writing.
func (e *Exporter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// GetMetrics returns a snapshot of the internal counters.
func (e *Exporter) GetMetrics() map[string]interface{} {
	return e.metrics.snapshot()
}

func (e *Exporter) prepare(row models.SearchResultRow) (models.SearchResultRow, bool) {
	if err := parser.ValidateRow(&row); err != nil {
		e.metrics.addValidation("invalid_record")
		slog.Debug("row rejected", slog.Any("error", err))
		return row, false
	}

	key := parser.DedupeKey(&row)
	if e.seen.Contains(key) {
		e.metrics.addValidation("duplicate_row")
		return row, false
	}
	e.seen.Add(key, struct{}{})

	row.Title = parser.NormalizeText(row.Title)
	return row, true
}

type metrics struct {
	mu         sync.Mutex
	exported   int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addExported(n int) {
	m.mu.Lock()
	m.exported += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"exported_rows":     m.exported,
		"validation_errors": copyValidation,
	}
}
