// Command remote_commit creates one commit on a remote
// repository through the hosting service's Git data API.
// It loads a config file, checks that the API is
// reachable, then runs the commit pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/byte4ever/remote_commit/committer"
	"github.com/byte4ever/remote_commit/config"
	"github.com/byte4ever/remote_commit/connectivity"
)

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	const errCtx = "running remote_commit"

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	configPath := fs.String(
		"config", "config.json",
		"Path to the JSON or YAML config file",
	)
	dryRun := fs.Bool(
		"dry_run", false,
		"Load config and check connectivity only",
	)
	version := fs.Bool(
		"version", false,
		"Print version and exit",
	)

	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *version {
		fmt.Fprintln(stdout, config.Version) //nolint:errcheck

		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info("loaded config", "config", cfg)

	client := &http.Client{Timeout: cfg.Timeout}
	ctx := context.Background()

	// Everything that can fail with config.ErrConfig
	// runs before the first request.
	provider, err := committer.NewProvider(cfg, client)
	if err != nil {
		return fmt.Errorf(
			"%s: create provider: %w", errCtx, err,
		)
	}

	pcfg, err := committer.FromConfig(cfg, provider)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if cfg.Preflight {
		pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		err := connectivity.Check(
			pctx, client, committer.APIRoot(cfg), cfg.UserAgent,
		)

		cancel()

		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	if *dryRun {
		slog.Info(
			"dry run: skipping remote writes",
			"branch", pcfg.Branch,
			"file_path", pcfg.FilePath,
		)

		return nil
	}

	res, err := committer.Run(ctx, pcfg)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"commit created",
		"branch", cfg.Branch,
		"commit", res.Commit,
		"parent", res.Parent,
	)

	return nil
}
