package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// ResolutionPrompts overrides the built-in oracle prompt templates.
// Empty fields fall back to the defaults compiled into the resolve package.
type ResolutionPrompts struct {
	Pair  string `toml:"pair"`
	Label string `toml:"label"`
}

type LLMConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	MaxRetries int    `toml:"max_retries"`
}

type ResolutionConfig struct {
	MergeThreshold       float64           `toml:"merge_threshold"`
	MinMentionConfidence float64           `toml:"min_mention_confidence"`
	EntityTypes          []string          `toml:"entity_types"`
	ContextRadius        int               `toml:"context_radius"`
	Prompts              ResolutionPrompts `toml:"prompts"`
}

type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type KBConfig struct {
	Backend                 string      `toml:"backend"`
	Endpoint                string      `toml:"endpoint"`
	Language                string      `toml:"language"`
	MaxCandidates           int         `toml:"max_candidates"`
	DisambiguationThreshold float64     `toml:"disambiguation_threshold"`
	MaxHierarchyDepth       int         `toml:"max_hierarchy_depth"`
	OracleTieBreak          bool        `toml:"oracle_tie_break"`
	TieBreakMargin          float64     `toml:"tie_break_margin"`
	Graph                   GraphConfig `toml:"graph"`
}

type CacheConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type ConcurrencyConfig struct {
	OracleWorkers int `toml:"oracle_workers"`
	LinkWorkers   int `toml:"link_workers"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Resolution  ResolutionConfig  `toml:"resolution"`
	KB          KBConfig          `toml:"kb"`
	Cache       CacheConfig       `toml:"cache"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Server      ServerConfig      `toml:"server"`
}

// Default returns a config that works without any file on disk: an in-memory
// cache, the public Wikidata endpoint, and the thresholds the resolution
// pipeline was tuned with.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "ollama",
			Model:      "gpt-oss:latest",
			BaseURL:    "http://localhost:11434",
			MaxRetries: 3,
		},
		Resolution: ResolutionConfig{
			MergeThreshold: 0.6,
			ContextRadius:  200,
		},
		KB: KBConfig{
			Backend:                 "wikidata",
			Endpoint:                "https://www.wikidata.org",
			Language:                "en",
			MaxCandidates:           5,
			DisambiguationThreshold: 0.5,
			MaxHierarchyDepth:       5,
			OracleTieBreak:          true,
			TieBreakMargin:          0.1,
			Graph: GraphConfig{
				URI: "bolt://localhost:7687",
			},
		},
		Cache: CacheConfig{
			Backend: "memory",
		},
		Concurrency: ConcurrencyConfig{
			OracleWorkers: 4,
			LinkWorkers:   4,
		},
		Server: ServerConfig{
			Port: "8080",
		},
	}
}

// Load reads a TOML config file and fills unset fields from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.fillDefaults()

	return cfg, nil
}

// fillDefaults restores zero-valued fields that have no meaningful zero.
// A threshold of 0 would merge every positive decision and link every
// candidate, so absent values fall back to the tuned defaults instead.
func (c *Config) fillDefaults() {
	def := Default()

	if c.LLM.Provider == "" {
		c.LLM = def.LLM
	}
	if c.Resolution.MergeThreshold == 0 {
		c.Resolution.MergeThreshold = def.Resolution.MergeThreshold
	}
	if c.Resolution.ContextRadius == 0 {
		c.Resolution.ContextRadius = def.Resolution.ContextRadius
	}
	if c.KB.Backend == "" {
		c.KB.Backend = def.KB.Backend
	}
	if c.KB.Endpoint == "" {
		c.KB.Endpoint = def.KB.Endpoint
	}
	if c.KB.Language == "" {
		c.KB.Language = def.KB.Language
	}
	if c.KB.MaxCandidates == 0 {
		c.KB.MaxCandidates = def.KB.MaxCandidates
	}
	if c.KB.DisambiguationThreshold == 0 {
		c.KB.DisambiguationThreshold = def.KB.DisambiguationThreshold
	}
	if c.KB.MaxHierarchyDepth == 0 {
		c.KB.MaxHierarchyDepth = def.KB.MaxHierarchyDepth
	}
	if c.KB.TieBreakMargin == 0 {
		c.KB.TieBreakMargin = def.KB.TieBreakMargin
	}
	if c.KB.Graph.URI == "" {
		c.KB.Graph.URI = def.KB.Graph.URI
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = def.Cache.Backend
	}
	if c.Concurrency.OracleWorkers == 0 {
		c.Concurrency.OracleWorkers = def.Concurrency.OracleWorkers
	}
	if c.Concurrency.LinkWorkers == 0 {
		c.Concurrency.LinkWorkers = def.Concurrency.LinkWorkers
	}
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
}

// ApplyEnv overrides config values from environment variables if present.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.MaxRetries = n
		}
	}
	if v := os.Getenv("KB_BACKEND"); v != "" {
		c.KB.Backend = v
	}
	if v := os.Getenv("KB_ENDPOINT"); v != "" {
		c.KB.Endpoint = v
	}
	if v := os.Getenv("KB_GRAPH_URI"); v != "" {
		c.KB.Graph.URI = v
	}
	if v := os.Getenv("KB_GRAPH_USER"); v != "" {
		c.KB.Graph.User = v
	}
	if v := os.Getenv("KB_GRAPH_PASSWORD"); v != "" {
		c.KB.Graph.Password = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}

// Validate rejects configs the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini", "claude", "ollama":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.Resolution.MergeThreshold < 0 || c.Resolution.MergeThreshold > 1 {
		return fmt.Errorf("merge_threshold must be in [0,1], got %v", c.Resolution.MergeThreshold)
	}
	if c.KB.DisambiguationThreshold < 0 || c.KB.DisambiguationThreshold > 1 {
		return fmt.Errorf("disambiguation_threshold must be in [0,1], got %v", c.KB.DisambiguationThreshold)
	}
	switch c.KB.Backend {
	case "wikidata", "graph", "none":
	default:
		return fmt.Errorf("unsupported KB backend: %s", c.KB.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "sqlite", "none":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.Backend == "sqlite" && c.Cache.Path == "" {
		return fmt.Errorf("cache backend 'sqlite' requires cache.path")
	}
	return nil
}
