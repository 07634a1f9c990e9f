package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tcassar-diss/memtrace/trace"
	"go.uber.org/zap"
)

// Diagnostics describe the dataset a run trained on.
type Diagnostics struct {
	Path     string `json:"path"`
	Events   int    `json:"events"`
	Features []int  `json:"features"`

	// RowLengths are the distinct widths of the training rows, expected to hold a single value.
	RowLengths   []int `json:"row_lengths"`
	TrainingRows int   `json:"training_rows"`
	Positives    int   `json:"positives"`

	Stats trace.Stats `json:"stats"`
}

// Prediction is the label a model gave the prediction row, alongside the row's true label.
type Prediction struct {
	Model  string `json:"model"`
	Row    int    `json:"row"`
	Label  int    `json:"label"`
	Actual int    `json:"actual"`
}

// Summary is everything reported during a run.
type Summary struct {
	Diagnostics *Diagnostics  `json:"diagnostics"`
	Predictions []*Prediction `json:"predictions"`
}

type Reporter interface {
	Diagnostics(d *Diagnostics)
	Report(p *Prediction)
	WriteFile(filepath string) error
}

type consoleReporter struct {
	logger  *zap.SugaredLogger
	output  io.Writer
	summary Summary
	mu      sync.Mutex
}

// NewConsoleReporter is a thread safe reporter that prints one line per diagnostic and per prediction.
//
// Everything reported is kept so it can be saved with WriteFile.
func NewConsoleReporter(logger *zap.SugaredLogger, output io.Writer) Reporter {
	return &consoleReporter{
		logger: logger,
		output: output,
	}
}

func (c *consoleReporter) Diagnostics(d *Diagnostics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary.Diagnostics = d

	if d.Stats.Counted == 0 {
		c.printf("min: n/a, max: n/a\n")
	} else {
		c.printf("min: %d, max: %d\n", d.Stats.MinValue, d.Stats.MaxValue)
	}

	c.printf("row lengths: %v\n", d.RowLengths)
}

func (c *consoleReporter) Report(p *Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary.Predictions = append(c.summary.Predictions, p)

	c.printf("Result - %s: [%d]\n", p.Model, p.Label)
}

func (c *consoleReporter) WriteFile(filepath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Infow("saving summary", "path", filepath)

	bts, err := json.MarshalIndent(c.summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := os.WriteFile(filepath, bts, 0o644); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	return nil
}

func (c *consoleReporter) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.output, format, args...); err != nil {
		c.logger.Errorw("failed to write report line", "err", err)
	}
}
