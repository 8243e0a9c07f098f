// Command sqlworker serves the worker protocol over stdin and stdout, one
// JSON request or response per line. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/viant/sqlite-worker/engine"
	"github.com/viant/sqlite-worker/snapshot"
	"github.com/viant/sqlite-worker/worker"
)

// Version is set at build time via -ldflags
var Version = "dev"

type settings struct {
	dir        string
	seed       string
	save       string
	debug      bool
	extensions bool
	s3         snapshot.S3Config
}

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	cfg := parseFlags(flag.CommandLine, os.Args[1:])
	if *showVersion {
		fmt.Printf("sqlworker v%s\n", Version)
		return
	}

	logger, err := newLogger(cfg.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) settings {
	var cfg settings
	fs.StringVar(&cfg.dir, "dir", env("SQLWORKER_DIR", ""), "Directory for backing store files (system temp dir if empty)")
	fs.StringVar(&cfg.seed, "seed", env("SQLWORKER_SEED", ""), "Snapshot to open on start (path, file:// or s3:// URL)")
	fs.StringVar(&cfg.save, "save", env("SQLWORKER_SAVE", ""), "Snapshot to export to on exit (path, file:// or s3:// URL)")
	fs.BoolVar(&cfg.debug, "debug", envBool("SQLWORKER_DEBUG", false), "Enable debug logging")
	fs.BoolVar(&cfg.extensions, "extensions", envBool("SQLWORKER_EXTENSIONS", true), "Install built-in extension functions")
	fs.StringVar(&cfg.s3.Region, "s3-region", env("SQLWORKER_S3_REGION", ""), "S3 region")
	fs.StringVar(&cfg.s3.Endpoint, "s3-endpoint", env("SQLWORKER_S3_ENDPOINT", ""), "S3-compatible endpoint")
	_ = fs.Parse(args)
	cfg.s3.AccessKey = os.Getenv("SQLWORKER_S3_ACCESS_KEY")
	cfg.s3.SecretKey = os.Getenv("SQLWORKER_S3_SECRET_KEY")
	return cfg
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func run(ctx context.Context, cfg settings, in io.Reader, out io.Writer, logger *zap.Logger) error {
	engine.SetLogger(logger.Named("engine"))
	worker.SetLogger(logger.Named("worker"))

	state := worker.NewState(engine.WithDir(cfg.dir), engine.WithExtensions(cfg.extensions))
	defer state.Close()

	if cfg.seed != "" {
		if err := seed(ctx, state, cfg); err != nil {
			return err
		}
	}
	err := worker.ServeStream(ctx, state, in, out)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("worker interrupted")
		err = nil
	}
	if err != nil {
		return err
	}
	if cfg.save != "" {
		return save(context.WithoutCancel(ctx), state, cfg, logger)
	}
	return nil
}

func seed(ctx context.Context, state *worker.State, cfg settings) error {
	store, err := snapshot.Open(ctx, cfg.seed, snapshot.WithS3(cfg.s3))
	if err != nil {
		return err
	}
	data, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", store, err)
	}
	return state.Open(data)
}

func save(ctx context.Context, state *worker.State, cfg settings, logger *zap.Logger) error {
	db := state.Database()
	if db == nil || db.Closed() {
		logger.Info("no open database, snapshot not saved", zap.String("snapshot", cfg.save))
		return nil
	}
	data, err := db.Export()
	if err != nil {
		return err
	}
	store, err := snapshot.Open(ctx, cfg.save, snapshot.WithS3(cfg.s3))
	if err != nil {
		return err
	}
	if err := store.Save(ctx, data); err != nil {
		return err
	}
	logger.Info("snapshot saved", zap.Stringer("snapshot", store), zap.Int("bytes", len(data)))
	return nil
}
