package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "claude"
model = "claude-sonnet-4-20250514"
api_key = "sk-test"
max_retries = 5

[resolution]
merge_threshold = 0.7
min_mention_confidence = 0.25
entity_types = ["PERSON", "ORG"]

[resolution.prompts]
pair = "custom pair prompt"

[kb]
backend = "graph"
max_candidates = 10

[kb.graph]
uri = "bolt://graph:7687"
user = "neo4j"
password = "secret"

[cache]
backend = "sqlite"
path = "/tmp/cobalt.db"

[concurrency]
oracle_workers = 8

[server]
port = "9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 0.7, cfg.Resolution.MergeThreshold)
	assert.Equal(t, 0.25, cfg.Resolution.MinMentionConfidence)
	assert.Equal(t, []string{"PERSON", "ORG"}, cfg.Resolution.EntityTypes)
	assert.Equal(t, "custom pair prompt", cfg.Resolution.Prompts.Pair)
	assert.Equal(t, "graph", cfg.KB.Backend)
	assert.Equal(t, 10, cfg.KB.MaxCandidates)
	assert.Equal(t, "bolt://graph:7687", cfg.KB.Graph.URI)
	assert.Equal(t, "secret", cfg.KB.Graph.Password)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 8, cfg.Concurrency.OracleWorkers)
	assert.Equal(t, "9090", cfg.Server.Port)

	require.NoError(t, cfg.Validate())
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "openai"
model = "gpt-4o-mini"
api_key = "sk-test"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Resolution.MergeThreshold)
	assert.Equal(t, 200, cfg.Resolution.ContextRadius)
	assert.Equal(t, "wikidata", cfg.KB.Backend)
	assert.Equal(t, "https://www.wikidata.org", cfg.KB.Endpoint)
	assert.Equal(t, "en", cfg.KB.Language)
	assert.Equal(t, 5, cfg.KB.MaxCandidates)
	assert.Equal(t, 0.5, cfg.KB.DisambiguationThreshold)
	assert.Equal(t, 5, cfg.KB.MaxHierarchyDepth)
	assert.Equal(t, 0.1, cfg.KB.TieBreakMargin)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 4, cfg.Concurrency.OracleWorkers)
	assert.Equal(t, 4, cfg.Concurrency.LinkWorkers)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadBadTOML(t *testing.T) {
	path := writeConfig(t, `[llm
provider =`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse TOML")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("LLM_MODEL", "gemini-2.0-flash")
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("LLM_MAX_RETRIES", "7")
	t.Setenv("KB_ENDPOINT", "http://kb.local/api")
	t.Setenv("PORT", "3000")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, 7, cfg.LLM.MaxRetries)
	assert.Equal(t, "http://kb.local/api", cfg.KB.Endpoint)
	assert.Equal(t, "3000", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := Default()
	bad.LLM.Provider = "watson"
	assert.ErrorContains(t, bad.Validate(), "unsupported LLM provider")

	bad = Default()
	bad.Resolution.MergeThreshold = 1.5
	assert.ErrorContains(t, bad.Validate(), "merge_threshold")

	bad = Default()
	bad.KB.Backend = "sparql"
	assert.ErrorContains(t, bad.Validate(), "unsupported KB backend")

	bad = Default()
	bad.Cache.Backend = "sqlite"
	bad.Cache.Path = ""
	assert.ErrorContains(t, bad.Validate(), "requires cache.path")
}
