package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cmdnice/internal/cache"
	"cmdnice/internal/config"
	"cmdnice/internal/crawler"
	"cmdnice/internal/graph"
	"cmdnice/internal/index"
	"cmdnice/internal/output"
	"cmdnice/internal/resolver"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "cmdnice",
		Short:         "Normalize, concatenate and debug-rename CMD modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath   string
	dbPath       string
	outputFormat string
	quiet        bool
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default cmdnice.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "cmdnice.db", "Path to the module graph database (SQLite)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Report format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress reports")

	rootCmd.AddCommand(transportCmd)
	rootCmd.AddCommand(concatCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(resolveCmd)
}

// app is what every command is built from.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	resolver *resolver.Resolver
	cache    *cache.Cache
	out      *output.Formatter
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "cmdnice",
		Level:  level,
	})

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	r := resolver.New(resolver.Options{
		Root:       cfg.Root,
		Paths:      cfg.Paths,
		Alias:      cfg.Alias,
		AliasPaths: cfg.AliasPaths,
		Extension:  cfg.Extension,
		IDRule:     resolver.TemplateRule(cfg.IDRule),
	})
	logger.Debug("config loaded", "root", cfg.Root, "paths", strings.Join(cfg.Paths, ","), "strict", cfg.Strict)

	return &app{
		cfg:      cfg,
		logger:   logger,
		resolver: r,
		cache:    cache.New(cfg.CacheEnabled()),
		out:      output.NewFormatter(format, false, quiet),
	}, nil
}

func (a *app) component(name string) *log.Logger {
	return a.logger.With("component", name)
}

func (a *app) walker() *graph.Walker {
	return graph.NewWalker(graph.WalkerOptions{
		Resolver: a.resolver,
		Cache:    a.cache,
		Logger:   a.component("walker"),
		Strict:   a.cfg.Strict,
	})
}

func (a *app) indexer() *index.Indexer {
	return index.NewIndexer(crawler.NewCrawler(a.resolver.Extension()), a.resolver, a.component("index"))
}
