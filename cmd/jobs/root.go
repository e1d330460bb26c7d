package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"nostr-jobs/pkg/admin"
	"nostr-jobs/pkg/config"
	"nostr-jobs/pkg/jobs"
	"nostr-jobs/pkg/version"

	"github.com/spf13/cobra"
)

func newRootCmd(logger *log.Logger, newClient clientFactory) *cobra.Command {
	root := &cobra.Command{
		Use:          "jobs",
		Short:        "Query nostr job listings",
		Long:         "jobs queries kind 9993 job listings from a set of nostr relays, with a single-flight cache in front of them.\n\n" + config.EnvUsage(),
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(logger, newClient),
		newSearchCmd(logger, newClient),
		newJobCmd(logger, newClient),
		newStatsCmd(logger, newClient),
		newLatestCmd(logger, newClient),
		newVersionCmd(),
	)
	return root
}

// runQuery loads configuration, connects and hands the wired service to fn.
// The reply is printed to the command's output.
func runQuery(cmd *cobra.Command, logger *log.Logger, newClient clientFactory, fn func(ctx context.Context, s *jobs.Service) string) error {
	cfg, err := config.Load(cmd.Flags(), logger)
	if err != nil {
		return err
	}

	a := newApp(cfg, newClient, logger)
	defer a.close()

	ctx := cmd.Context()
	a.connect(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), fn(ctx, a.service))
	return nil
}

func newSearchCmd(logger *log.Logger, newClient clientFactory) *cobra.Command {
	var args jobs.SearchArgs
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search job listings by company, skill or employment type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, logger, newClient, func(ctx context.Context, s *jobs.Service) string {
				return s.Search(ctx, args)
			})
		},
	}
	cmd.Flags().StringVar(&args.Company, "company", "", "company name (substring, case-insensitive)")
	cmd.Flags().StringVar(&args.Skill, "skill", "", "required skill (substring, case-insensitive)")
	cmd.Flags().StringVar(&args.EmploymentType, "employment-type", "", "employment type, e.g. full-time")
	cmd.Flags().IntVar(&args.Limit, "limit", 0, "maximum number of results (default 20)")
	return cmd
}

func newJobCmd(logger *log.Logger, newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show the full details of one listing",
		Long:  "Show the full details of one listing. The id may be a job id, a hex event id, a note1 or an nevent1 reference.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, logger, newClient, func(ctx context.Context, s *jobs.Service) string {
				return s.JobDetails(ctx, args[0])
			})
		},
	}
}

func newStatsCmd(logger *log.Logger, newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics over recent listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, logger, newClient, func(ctx context.Context, s *jobs.Service) string {
				return s.Stats(ctx)
			})
		},
	}
}

func newLatestCmd(logger *log.Logger, newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "latest [n]",
		Short: "Show the most recent listings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return fmt.Errorf("invalid count %q", args[0])
				}
				n = v
			}
			return runQuery(cmd, logger, newClient, func(ctx context.Context, s *jobs.Service) string {
				return s.Latest(ctx, n)
			})
		},
	}
}

func newServeCmd(logger *log.Logger, newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the long-lived service with health probing and the admin HTTP surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newClient, logger)
		},
	}
}

// serve runs until ctx ends. Relays are dialed in the background so queries
// are answered, possibly degraded, from the first moment.
func serve(ctx context.Context, cfg *config.Config, newClient clientFactory, logger *log.Logger) error {
	logger.Printf("Starting nostr-jobs %s", version.Info().Version)
	logger.Printf("Relays: %v", cfg.RelayURLs)
	logger.Printf("Fetch timeout: %s, listing TTL: %s, stats TTL: %s", cfg.Timeouts.Fetch, cfg.Cache.ListingTTL, cfg.Cache.StatsTTL)

	a := newApp(cfg, newClient, logger)
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.connect(ctx)
	}()
	a.startMonitor()

	var (
		errMu     sync.Mutex
		serverErr error
	)
	// A listener that fails brings the whole service down.
	runServer := func(run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				logger.Printf("ERROR: %v", err)
				errMu.Lock()
				serverErr = err
				errMu.Unlock()
				cancel()
			}
		}()
	}
	if cfg.AdminAddr != "" {
		handler := admin.NewHandler(a.service, a.monitor, logger)
		runServer(admin.NewServer(cfg.AdminAddr, admin.NewRouter(handler, cfg.Debug), logger).Run)
	}
	if cfg.GRPCAddr != "" {
		runServer(admin.NewGRPCHealthServer(cfg.GRPCAddr, a.monitor, 0, logger).Run)
	}

	newStatusPrinter(a.metrics, a.monitor, cfg.StatusInterval, logger).Run(ctx)
	cancel()
	wg.Wait()
	return serverErr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info().String())
		},
	}
}
