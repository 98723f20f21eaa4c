// Package main provides the corpus CLI: unpack container files to object storage, stage
// them into a relational table and curate tokenized documents into a document store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bull/corpus-pipeline/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	v       = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Text corpus ingestion pipeline",
	Long: `Moves a text corpus through three batch stages:

  unpack   Arrow/Parquet container files -> one newline-delimited blob in object storage
  stage    blob -> cleaned, deduplicated rows in a relational table
  curate   rows -> tokenized documents in a document store

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (CORPUS_*, e.g. CORPUS_STAGING_MYSQL_HOST)
  3. Config file (--config)
  4. Defaults (see 'corpus config show')`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("corpus %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.String("log-format", "", "log format: text or json")
	pf.Int("connect-retries", 0, "ping retries with exponential backoff when connecting")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// flagKeys maps flag names to config keys. Binding happens when a command runs, so a flag
// shared by several commands only ever reflects the invoked one.
var flagKeys = map[string]string{
	"verbose":         "verbose",
	"log-format":      "log_format",
	"connect-retries": "connect_retries",

	"root":       "source.root",
	"splits":     "source.splits",
	"text-field": "source.text_field",

	"blob-backend":         "blob.backend",
	"bucket":               "blob.bucket",
	"key":                  "blob.key",
	"scratch-dir":          "blob.scratch_dir",
	"s3-endpoint":          "blob.s3.endpoint",
	"s3-region":            "blob.s3.region",
	"s3-access-key-id":     "blob.s3.access_key_id",
	"s3-secret-access-key": "blob.s3.secret_access_key",
	"s3-path-style":        "blob.s3.path_style",
	"blob-dir":             "blob.dir.path",

	"staging-driver":     "staging.driver",
	"table":              "staging.table",
	"staging-batch-size": "staging.batch_size",
	"mysql-host":         "staging.mysql.host",
	"mysql-port":         "staging.mysql.port",
	"mysql-user":         "staging.mysql.user",
	"mysql-password":     "staging.mysql.password",
	"mysql-database":     "staging.mysql.database",
	"sqlite-path":        "staging.sqlite.path",

	"curated-backend":    "curated.backend",
	"collection":         "curated.collection",
	"curated-batch-size": "curated.batch_size",
	"metadata-source":    "curated.source",
	"mongo-uri":          "curated.mongo.uri",
	"mongo-database":     "curated.mongo.database",
	"qdrant-host":        "curated.qdrant.host",
	"qdrant-port":        "curated.qdrant.port",
	"qdrant-api-key":     "curated.qdrant.api_key",
	"qdrant-tls":         "curated.qdrant.use_tls",

	"tokenizer":  "tokenizer.name",
	"max-length": "tokenizer.max_length",
}

// loadConfig binds the running command's flags and resolves the full configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}
	return config.Load(v, cfgFile)
}

// newLogger installs the process logger; every record carries the run id.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	return logger
}
