package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-psdeals/models"
)

// DualWriter writes every batch to a CSV file and a JSONL file.
type DualWriter struct {
	csv  *CSVWriter
	json *JSONWriter
	mu   sync.Mutex
}

// NewDualWriter opens both outputs. The CSV file is closed again when the
// JSON file cannot be created.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json writer: %w", err)
	}

	return &DualWriter{
		csv:  csvWriter,
		json: jsonWriter,
	}, nil
}

func (dw *DualWriter) Write(rows []models.SearchResultRow) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csv.Write(rows); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	if err := dw.json.Write(rows); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.csv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close csv: %w", err))
	}
	if err := dw.json.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close json: %w", err))
	}
	return errors.Join(errs...)
}

func (dw *DualWriter) Validate() error {
	return errors.Join(dw.csv.Validate(), dw.json.Validate())
}
