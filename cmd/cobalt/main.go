// Package main provides the cobalt binary: entity resolution and
// knowledge-base linking over a recognizer's mention feed, either as a
// one-shot CLI run or as an HTTP service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agenthands/cobalt/internal/cache"
	"github.com/agenthands/cobalt/internal/config"
	"github.com/agenthands/cobalt/internal/core"
	"github.com/agenthands/cobalt/internal/core/model"
	"github.com/agenthands/cobalt/internal/core/resolve"
	"github.com/agenthands/cobalt/internal/kb"
	"github.com/agenthands/cobalt/internal/llm"
	"github.com/agenthands/cobalt/internal/server"
)

const (
	appName           = "cobalt"
	version           = "0.1.0"
	defaultConfigPath = "config/config.toml"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cobalt",
	Short: "Entity resolution and knowledge-base linking engine",
	Long: `Cobalt resolves a named-entity recognizer's mention feed into canonical
entities and links them to an external knowledge base.

Mentions are grouped by normalized surface form, candidate clusters are
judged pairwise by an LLM oracle, merged under veto constraints, and the
resulting entities are matched against the knowledge base with a walk up
its type hierarchy.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using defaults")
		}

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [file]",
	Short: "Resolve one document's mention feed",
	Long: `Reads a document as JSON ({"text": "...", "mentions": [...]}) from the
given file, or from stdin when no file is named, resolves the mentions into
canonical entities, and prints the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolution pipeline over HTTP",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s version %s\n", appName, version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	resolveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	rootCmd.AddCommand(resolveCmd, serveCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config or $COBALT_CONFIG, falling
// back to the default path and then to built-in defaults when no file
// exists. A file that was named explicitly must load.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("COBALT_CONFIG")
	}
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.Load(defaultConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	data, err := readInput(args)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse document JSON: %w", err)
	}

	ctx := cmd.Context()
	pipeline, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := pipeline.Resolve(ctx, doc)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Println(result.Display())
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	pipeline, cleanup, err := buildPipeline(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.NewServer(pipeline, logger)
	r := srv.SetupRouter()

	logger.Info("starting server", zap.String("port", cfg.Server.Port))
	return r.Run(":" + cfg.Server.Port)
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}

// buildPipeline assembles the pipeline from config: response cache, LLM
// client, oracle, and knowledge-base linker. The returned cleanup releases
// whatever backends were opened.
func buildPipeline(ctx context.Context) (*core.Pipeline, func(), error) {
	responseCache, closeCache, err := newCache()
	if err != nil {
		return nil, nil, err
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		closeCache()
		return nil, nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	oracle := resolve.NewOracle(llmClient, cfg.Resolution.Prompts, responseCache)

	linker, closeLinker, err := newLinker(llmClient, responseCache)
	if err != nil {
		closeCache()
		return nil, nil, err
	}

	cleanup := func() {
		closeLinker()
		closeCache()
	}
	return core.NewPipeline(oracle, linker, cfg, logger), cleanup, nil
}

func newCache() (cache.Cache, func(), error) {
	noop := func() {}
	switch cfg.Cache.Backend {
	case "none":
		return nil, noop, nil
	case "sqlite":
		s, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open response cache: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return cache.NewMemory(), noop, nil
	}
}

func newLinker(llmClient llm.LLMClient, responseCache cache.Cache) (*kb.Linker, func(), error) {
	noop := func() {}

	var reranker llm.RerankerClient
	if cfg.KB.OracleTieBreak {
		reranker = llm.NewSimpleLLMReranker(llmClient)
	}

	switch cfg.KB.Backend {
	case "none":
		return nil, noop, nil
	case "graph":
		g, err := kb.NewGraphKB(cfg.KB.Graph.URI, cfg.KB.Graph.User, cfg.KB.Graph.Password, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to graph knowledge base: %w", err)
		}
		cleanup := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = g.Close(closeCtx)
		}
		return kb.NewLinker(g, g, reranker, cfg.KB), cleanup, nil
	default:
		w := kb.NewWikidataClient(cfg.KB.Endpoint, cfg.KB.Language, responseCache)
		return kb.NewLinker(w, w, reranker, cfg.KB), noop, nil
	}
}
