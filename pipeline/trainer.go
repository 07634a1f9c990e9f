package pipeline

import (
	"context"
	"fmt"

	"github.com/tcassar-diss/memtrace/classify"
	"github.com/tcassar-diss/memtrace/dataset"
	"github.com/tcassar-diss/memtrace/trace"
	"go.uber.org/zap"
)

// Trainer parses a trace, trains every classifier on it and labels one row with each.
type Trainer struct {
	logger      *zap.SugaredLogger
	parser      *trace.Parser
	reporter    Reporter
	cfg         Cfg
	classifiers []classify.Classifier
}

// NewTrainer configures logistic regression, a linear svc and a random forest from cfg, in that order.
func NewTrainer(logger *zap.SugaredLogger, parser *trace.Parser, reporter Reporter, cfg Cfg) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lr := classify.NewLogisticRegression(logger, cfg.LogisticRegression.C)
	lr.MaxIter = cfg.LogisticRegression.MaxIter

	svc := classify.NewLinearSVC(logger, cfg.SVC.C)
	svc.Tol = cfg.SVC.Tol
	svc.MaxIter = cfg.SVC.MaxIter

	forest := classify.NewRandomForest(logger, cfg.RandomForest.Trees, cfg.RandomForest.Seed)
	if cfg.RandomForest.Workers > 0 {
		forest.Workers = cfg.RandomForest.Workers
	}

	return &Trainer{
		logger:      logger,
		parser:      parser,
		reporter:    reporter,
		cfg:         cfg,
		classifiers: []classify.Classifier{lr, svc, forest},
	}, nil
}

// Run trains on every row of the trace at path but the last, then predicts row cfg.PredictIndex of the
// full dataset with every classifier.
func (t *Trainer) Run(ctx context.Context, path string) (*Summary, error) {
	res, err := t.parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}

	d := dataset.Assemble(res.Events, res.Features, dataset.NewAffectedSet(t.cfg.Affected...))
	rows, labels := d.Training()

	diag := &Diagnostics{
		Path:         path,
		Events:       d.Len(),
		Features:     d.Keys,
		RowLengths:   dataset.RowLengths(rows),
		TrainingRows: len(rows),
		Stats:        res.Stats,
	}
	for _, l := range labels {
		diag.Positives += l
	}

	t.reporter.Diagnostics(diag)

	t.logger.Infow(
		"assembled dataset",
		"rows", d.Len(),
		"training_rows", len(rows),
		"positives", diag.Positives,
		"features", len(d.Keys),
	)

	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to train on %s: %w", path, classify.ErrEmptyDataset)
	}

	row, actual, err := d.Row(t.cfg.PredictIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to select prediction row: %w", err)
	}

	rowIdx := t.cfg.PredictIndex
	if rowIdx < 0 {
		rowIdx += d.Len()
	}

	summary := &Summary{Diagnostics: diag}

	for _, clf := range t.classifiers {
		model, err := clf.Fit(ctx, rows, labels)
		if err != nil {
			return nil, fmt.Errorf("failed to fit %s: %w", clf.Name(), err)
		}

		label, err := model.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("failed to predict with %s: %w", clf.Name(), err)
		}

		p := &Prediction{
			Model:  clf.Name(),
			Row:    rowIdx,
			Label:  label,
			Actual: actual,
		}

		t.logger.Infow("prediction", "model", p.Model, "row", p.Row, "label", p.Label, "actual", p.Actual)

		t.reporter.Report(p)
		summary.Predictions = append(summary.Predictions, p)
	}

	return summary, nil
}
