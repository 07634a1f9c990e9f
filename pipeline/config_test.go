package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/memtrace/pipeline"
)

func writeCfg(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestDefaultCfg(t *testing.T) {
	cfg := pipeline.DefaultCfg()

	require.Equal(t, []int{9}, cfg.Affected)
	require.Equal(t, -2, cfg.PredictIndex)
	require.Equal(t, 0.01, cfg.LogisticRegression.C)
	require.Equal(t, 0.01, cfg.SVC.C)
	require.Equal(t, 100, cfg.RandomForest.Trees)
	require.NoError(t, cfg.Validate())
}

func TestLoadCfg(t *testing.T) {
	path := writeCfg(t, `
affected: [9, 10, 11]
predict_index: -1
svc:
  c: 0.5
random_forest:
  trees: 20
  seed: 99
`)

	cfg, err := pipeline.LoadCfg(path)
	require.NoError(t, err)

	expected := pipeline.DefaultCfg()
	expected.Affected = []int{9, 10, 11}
	expected.PredictIndex = -1
	expected.SVC.C = 0.5
	expected.RandomForest.Trees = 20
	expected.RandomForest.Seed = 99

	require.Equal(t, expected, cfg)
}

func TestLoadCfgErrors(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{name: "unknown field", contents: "trees: 3\n"},
		{name: "wrong type", contents: "predict_index: last\n"},
		{name: "non-positive c", contents: "logistic_regression:\n  c: 0\n"},
		{name: "no trees", contents: "random_forest:\n  trees: 0\n"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := pipeline.LoadCfg(writeCfg(t, c.contents))
			require.Error(t, err)
		})
	}

	_, err := pipeline.LoadCfg(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCfgEmpty(t *testing.T) {
	cfg, err := pipeline.LoadCfg(writeCfg(t, ""))
	require.NoError(t, err)
	require.Equal(t, pipeline.DefaultCfg(), cfg)
}
