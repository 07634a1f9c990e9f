package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

var ErrInvalidCfg = errors.New("invalid config")

// Cfg holds the affected syscall set, which row to predict and the classifier hyperparameters.
type Cfg struct {
	// Affected are the syscall ids labelled as the positive class.
	Affected []int `yaml:"affected"`

	// PredictIndex is the row of the full dataset that every model labels. Negative values count back from
	// the last row, so the default of -2 is the row just before the one held out of training.
	PredictIndex int `yaml:"predict_index"`

	LogisticRegression LogisticRegressionCfg `yaml:"logistic_regression"`
	SVC                SVCCfg                `yaml:"svc"`
	RandomForest       RandomForestCfg       `yaml:"random_forest"`
}

type LogisticRegressionCfg struct {
	C       float64 `yaml:"c"`
	MaxIter int     `yaml:"max_iter"`
}

type SVCCfg struct {
	C       float64 `yaml:"c"`
	Tol     float64 `yaml:"tol"`
	MaxIter int     `yaml:"max_iter"`
}

type RandomForestCfg struct {
	Trees   int    `yaml:"trees"`
	Seed    uint64 `yaml:"seed"`
	Workers int    `yaml:"workers"`
}

func DefaultCfg() Cfg {
	return Cfg{
		Affected:     []int{9},
		PredictIndex: -2,
		LogisticRegression: LogisticRegressionCfg{
			C:       1e-2,
			MaxIter: 100,
		},
		SVC: SVCCfg{
			C:       1e-2,
			Tol:     1e-4,
			MaxIter: 1000,
		},
		RandomForest: RandomForestCfg{
			Trees:   100,
			Seed:    0,
			Workers: runtime.GOMAXPROCS(0),
		},
	}
}

// LoadCfg reads a yaml config from path. Fields missing from the file keep their DefaultCfg value.
func LoadCfg(path string) (Cfg, error) {
	cfg := DefaultCfg()

	bts, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(bts))
	dec.KnownFields(true)

	// an empty file decodes to io.EOF and keeps the defaults
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("failed to validate config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Cfg) Validate() error {
	if c.LogisticRegression.C <= 0 {
		return fmt.Errorf("%w: logistic_regression.c must be positive", ErrInvalidCfg)
	}

	if c.SVC.C <= 0 {
		return fmt.Errorf("%w: svc.c must be positive", ErrInvalidCfg)
	}

	if c.SVC.Tol <= 0 {
		return fmt.Errorf("%w: svc.tol must be positive", ErrInvalidCfg)
	}

	if c.LogisticRegression.MaxIter < 1 || c.SVC.MaxIter < 1 {
		return fmt.Errorf("%w: max_iter must be at least 1", ErrInvalidCfg)
	}

	if c.RandomForest.Trees < 1 {
		return fmt.Errorf("%w: random_forest.trees must be at least 1", ErrInvalidCfg)
	}

	return nil
}
