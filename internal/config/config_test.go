package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rag/internal/config"
	"portfolio-rag/internal/errs"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Embedder.Type)
	assert.Equal(t, "llama3.2:3b", cfg.Embedder.Model)
	assert.Equal(t, "ollama", cfg.LLM.Type)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 3, cfg.Answer.TopK)
	assert.Equal(t, "French", cfg.Answer.Language)
	assert.Equal(t, filepath.Join("data", "vectorstore"), cfg.Data.IndexDir)
	assert.Equal(t, "portfolio_csv", cfg.Data.Source)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeFile(t, `
data:
  records_file: /tmp/p.csv
  index_dir: /tmp/idx
  compress: true
embedder:
  type: hashing
  dimension: 128
llm:
  type: anthropic
answer:
  top_k: 5
  language: English
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/p.csv", cfg.Data.RecordsFile)
	assert.True(t, cfg.Data.Compress)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 128, cfg.Embedder.Dimension)
	assert.Equal(t, "anthropic", cfg.LLM.Type)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, 5, cfg.Answer.TopK)
	assert.Equal(t, "English", cfg.Answer.Language)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "llm:\n  model: from-file\n")
	t.Setenv("PORTFOLIO_LLM_MODEL", "from-env")
	t.Setenv("PORTFOLIO_DATA_INDEX_DIR", "/env/idx")
	t.Setenv("PORTFOLIO_ANSWER_TOP_K", "7")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "/env/idx", cfg.Data.IndexDir)
	assert.Equal(t, 7, cfg.Answer.TopK)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"unknown embedder": "embedder:\n  type: magic\n",
		"unknown llm":      "llm:\n  type: magic\n",
		"negative top_k":   "answer:\n  top_k: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, content))
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.CodeConfigInvalidValue))
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := config.Load(writeFile(t, "data: [unterminated\n"))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigLoadFailure))
}

func TestSave_ThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := config.Default()
	want.Answer.Language = "German"
	require.NoError(t, config.Save(path, want))

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
