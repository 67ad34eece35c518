package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/baxromumarov/job-harvester/internal/config"
	"github.com/baxromumarov/job-harvester/internal/core"
	"github.com/baxromumarov/job-harvester/internal/crawl"
	"github.com/baxromumarov/job-harvester/internal/store"
)

type crawlFlags struct {
	configPath string
	override   config.Config
	target     config.Budget
	linksOnly  bool
	render     bool
	dbEnabled  bool
}

var crawlOpts crawlFlags

func init() {
	f := crawlCmd.Flags()
	f.StringVarP(&crawlOpts.configPath, "config", "c", "", "YAML config file (defaults to $HARVEST_CONFIG)")
	f.StringVar(&crawlOpts.override.Site.Region, "region", "", "site region subdomain, e.g. dubai")
	f.StringVarP(&crawlOpts.override.Search.Keyword, "keyword", "k", "", "search keyword")
	f.StringVar(&crawlOpts.override.Search.Category, "category", "", "job category")
	f.StringSliceVar(&crawlOpts.override.Search.StartURLs, "start-url", nil, "listing or posting URL to start from (repeatable)")
	f.Var(&crawlOpts.target, "target", "records to collect, or 'unlimited'")
	f.IntVar(&crawlOpts.override.Limits.MaxPages, "max-pages", 0, "listing pages per start URL")
	f.IntVar(&crawlOpts.override.Fetch.Concurrency, "concurrency", 0, "concurrent detail fetches")
	f.BoolVar(&crawlOpts.linksOnly, "links-only", false, "emit posting URLs without fetching details")
	f.BoolVar(&crawlOpts.render, "render", false, "enable the headless browser strategy")
	f.StringVarP(&crawlOpts.override.Store.OutputPath, "output", "o", "", "JSONL output file, '-' for stdout")
	f.BoolVar(&crawlOpts.dbEnabled, "db", false, "also write to Postgres at $DATABASE_URL")
	f.StringVar(&crawlOpts.override.Logging.Level, "log-level", "", "debug, info, warn or error")
	f.StringVar(&crawlOpts.override.Logging.Format, "log-format", "", "text or json (default text)")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [--config harvest.yaml] [--keyword driver] [--output jobs.jsonl]",
	Short: "Runs one crawl and writes the records it finds.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadCrawlConfig(cmd)
		if err != nil {
			return err
		}
		logger := config.NewLogger(cfg.Logging, os.Stderr)
		slog.SetDefault(logger)

		runID := uuid.NewString()
		sinks, closeAll, err := openSinks(cfg, runID, crawlOpts.dbEnabled)
		if err != nil {
			return err
		}
		defer closeAll()

		sum, err := core.NewHarvester(cfg, logger).Run(cmd.Context(), runID, sinks)
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}
		logger.Info("crawl finished", "run_id", runID, "saved", sum.Saved, "pages", sum.Pages)
		return nil
	},
}

// loadCrawlConfig layers the set flags over the loaded file.
func loadCrawlConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(crawlOpts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := mergo.Merge(&cfg, crawlOpts.override, mergo.WithOverride); err != nil {
		return config.Config{}, fmt.Errorf("apply flags failed: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Limits.TargetCount = crawlOpts.target
	}
	if flags.Changed("links-only") {
		cfg.Limits.CollectDetails = !crawlOpts.linksOnly
	}
	if flags.Changed("render") {
		cfg.Fetch.Render.Enabled = crawlOpts.render
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Store.OutputPath == "" && !crawlOpts.dbEnabled {
		cfg.Store.OutputPath = "jobs.jsonl"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openSinks(cfg config.Config, runID string, useDB bool) (crawl.Sink, func(), error) {
	var (
		sinks   store.MultiSink
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Error("close output failed", "error", err)
			}
		}
	}

	if cfg.Store.OutputPath != "" {
		file, err := store.OpenFile(cfg.Store.OutputPath)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, file)
		closers = append(closers, file.Close)
	}
	if useDB {
		if cfg.Store.DatabaseURL == "" {
			closeAll()
			return nil, nil, errors.New("--db needs DATABASE_URL or store.database_url")
		}
		db, err := store.NewStore(cfg.Store.DatabaseURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, db.WithRun(runID))
		closers = append(closers, db.Close)
	}
	return sinks, closeAll, nil
}
