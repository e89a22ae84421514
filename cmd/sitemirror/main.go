// Command sitemirror crawls a live website and writes a self-contained
// static copy of it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stasazaryarozet/sitemirror/internal/config"
	"github.com/stasazaryarozet/sitemirror/internal/fetcher"
	"github.com/stasazaryarozet/sitemirror/internal/pipeline"
	"github.com/stasazaryarozet/sitemirror/internal/publish"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "sitemirror",
		Short:         "Mirror a live website into a static, self-hosted copy",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "path to configuration file")

	root.AddCommand(
		newMirrorCmd(&cfgPath),
		newCrawlCmd(&cfgPath),
		newValidateCmd(&cfgPath),
	)
	return root
}

func newMirrorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Crawl the site, resolve its assets and write the mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, pipeline.Options{})
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			result, err := p.Run(ctx)
			if err != nil {
				return err
			}

			site, err := publish.NewSiteWriter(cfg.Output.Directory, p.Logger())
			if err != nil {
				return err
			}

			publishers := []publish.Publisher{site}
			if cfg.DB.Enabled() {
				snapshot, err := publish.NewSnapshotWriter(cfg.DB)
				if err != nil {
					return err
				}
				defer snapshot.Close()
				publishers = append(publishers, snapshot)
			}

			if err := publish.NewFanout(publishers...).Publish(ctx, result); err != nil {
				return err
			}

			p.Logger().Info("mirror complete",
				"run_id", result.RunID,
				"pages", len(result.Pages),
				"assets", len(result.Assets),
				"duration", result.Duration.String(),
			)
			return nil
		},
	}
}

func newCrawlCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl and rewrite pages only, without downloading assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, pipeline.Options{SkipAssets: true})
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			result, err := p.Run(ctx)
			if err != nil {
				return err
			}

			p.Logger().Info("crawl complete",
				"run_id", result.RunID,
				"pages", len(result.Pages),
				"pages_failed", result.PagesFailed,
				"assets_discovered", len(result.Assets),
			)
			return nil
		},
	}
}

func newValidateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration, seed reachability and any written mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			if err := checkSeed(ctx, cfg); err != nil {
				return fmt.Errorf("seed check: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed reachable: %s\n", cfg.Site.BaseURL)

			if _, statErr := os.Stat(cfg.Output.Directory); statErr != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no mirror at %s yet, skipping reference check\n", cfg.Output.Directory)
				return nil
			}

			report, err := publish.ValidateSite(cfg.Output.Directory, nil)
			if err != nil {
				return err
			}
			if !report.OK() {
				for _, ref := range report.Missing {
					fmt.Fprintf(cmd.ErrOrStderr(), "missing: %s\n", ref)
				}
				return fmt.Errorf("%d local reference(s) missing", len(report.Missing))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d pages, %d local references\n", report.Pages, report.Refs)
			return nil
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// checkSeed fetches the base URL once to confirm the site is reachable
// before a mirror run is attempted.
func checkSeed(ctx context.Context, cfg *config.Config) error {
	base, err := cfg.BaseURL()
	if err != nil {
		return err
	}
	f, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Headers:      cfg.Fetch.Headers,
		Timeout:      cfg.Fetch.Timeout.Duration,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		ProxyURL:     cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return err
	}
	_, err = fetcher.NewClient(f, 0, 0, nil).Fetch(ctx, base)
	return err
}
