package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scraper_results/internal/app"
	"scraper_results/internal/config"
	"scraper_results/internal/query"
)

const dateLayout = "2006-01-02"

type options struct {
	configPath string
	date       string
	write      bool
	stem       string
	backend    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "scraper-results",
		Short: "Pull one day of scraped stories",
		Long: `scraper-results queries the stories scraped in the window around a day,
either from MongoDB or from the Elasticsearch index, and can write the
MongoDB results to a text file for the downstream pipeline.

Example usage:
  scraper-results                              # yesterday, count only
  scraper-results --date 2024-01-01 --write --stem scraper_results_`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "config.yaml", "config file")
	cmd.Flags().StringVar(&opts.date, "date", "", "day to process as YYYY-MM-DD (default yesterday)")
	cmd.Flags().BoolVar(&opts.write, "write", false, "write the stories to {stem}{YYYYMMDD}.txt")
	cmd.Flags().StringVar(&opts.stem, "stem", "", "file stem for --write")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "override the configured backend (mongo|elasticsearch)")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	day, err := parseDay(opts.date, time.Now())
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		kind, err := query.ParseBackend(opts.backend)
		if err != nil {
			return err
		}
		cfg.Elasticsearch = kind == query.BackendSearchIndex
	}
	if err := checkFlags(opts, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	scraperApp, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer scraperApp.Close()

	res, filename, err := scraperApp.ProcessDay(ctx, day, opts.write, opts.stem)
	if err != nil {
		return err
	}
	records, err := res.All(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stories retrieved: %d\n", len(records))
	if len(res.Failures) > 0 {
		fmt.Fprintf(out, "Stories skipped: %d\n", len(res.Failures))
	}
	if filename != "" {
		fmt.Fprintf(out, "Results written to %s\n", filename)
	}
	return nil
}

// checkFlags rejects combinations the configured backend cannot serve before
// any connection is made.
func checkFlags(opts *options, cfg *config.Config) error {
	if opts.write && query.BackendFor(cfg.Elasticsearch) == query.BackendSearchIndex {
		return fmt.Errorf("--write: %w", query.ErrUnsupportedCombination)
	}
	return nil
}

func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y := now.AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", s, err)
	}
	return day, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
