package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"blockwatch/internal/app/bootstrap"
	"blockwatch/internal/app/server"
	"blockwatch/internal/app/version"
	"blockwatch/internal/config"
	"blockwatch/internal/domain"
	"blockwatch/internal/jobs/runtime"
	"blockwatch/internal/security"
	"blockwatch/internal/support"
)

type cli struct {
	envFile   string
	settings  config.Settings
	logCloser io.Closer
}

func Run() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "blockwatch",
		Short: "Ingests public IP blocklist feeds and emits events for new entries",
		Long: `blockwatch downloads IP blocklist feeds, diffs each download against the
previous snapshot, stores newly listed addresses and publishes an event for each.`,
		SilenceUsage:       true,
		PersistentPreRunE:  c.init,
		PersistentPostRunE: c.shutdown,
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	root.AddCommand(
		c.runCmd(),
		c.serveCmd(),
		c.feedsCmd(),
		c.recordCmd(),
		c.tokenCmd(),
		c.geoliteCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(c.envFile); err != nil {
		log.Debug("No .env file found. Falling back to system environment variables.", "file", c.envFile)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	c.settings = settings

	closer, err := support.ConfigureLogging(settings.Log)
	if err != nil {
		return err
	}
	c.logCloser = closer
	return nil
}

func (c *cli) shutdown(*cobra.Command, []string) error {
	if c.logCloser != nil {
		return c.logCloser.Close()
	}
	return nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func (c *cli) runCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingest pass over every feed and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			components, err := bootstrap.Setup(ctx, c.settings)
			if err != nil {
				return err
			}
			defer components.Close()

			outcome, err := components.Service.Trigger(ctx, "cli")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(outcome)
			}
			for _, feed := range outcome.Feeds {
				fmt.Fprintln(out, feed)
			}
			fmt.Fprintf(out, "processed %d new addresses in %s\n", outcome.Processed, outcome.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run outcome as JSON")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var (
		port       int
		noSchedule bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			if !cmd.Flags().Changed("port") {
				port = resolvePort("BACKEND_PORT", "PORT", c.settings.BackendPort)
			}

			components, err := bootstrap.Setup(ctx, c.settings)
			if err != nil {
				return err
			}
			defer components.Close()

			api := &server.API{
				Service:   components.Service,
				Records:   components.Records,
				Catalog:   components.Coordinator.Catalog(),
				Namespace: components.Coordinator.Namespace(),
				Auth:      components.Auth,
			}

			schedule := runtime.IngestSchedule{Interval: c.settings.IngestInterval}
			if components.Redis != nil {
				prefix := runtime.HeartbeatKeyPrefix(c.settings.AppName, c.settings.Env)
				heartbeatCancel := runtime.LaunchInstanceHeartbeat(ctx, components.Redis, prefix)
				defer heartbeatCancel()

				api.Instances = func(ctx context.Context) (int, error) {
					return runtime.CountActiveInstances(ctx, components.Redis, prefix)
				}
				if c.settings.LeaderLock {
					schedule.LeaderClient = components.Redis
					schedule.LeaderKey = bootstrap.SchedulerKey(c.settings)
				}
			}

			if !noSchedule {
				go runtime.StartIngestRoutine(ctx, components.Service, schedule)
			}
			if components.Updater != nil {
				go runtime.StartGeoLiteUpdateRoutine(ctx, components.Updater, 0, !components.Enricher.Available())
			}

			return server.OpenRoutes(ctx, port, api)
		},
	}
	cmd.Flags().IntVar(&port, "port", config.DefaultBackendPort, "Port for the API server")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Serve the API without scheduled ingest runs")
	return cmd
}

func (c *cli) feedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "List the configured feed catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := bootstrap.LoadCatalog(c.settings)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tNAME\tENABLED\tURL")
			for _, feed := range catalog {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", feed.Source, feed.Name, !feed.Disabled, feed.URL)
			}
			return w.Flush()
		},
	}
}

func (c *cli) recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect or remove stored records",
	}

	get := &cobra.Command{
		Use:   "get <address>",
		Short: "Print the record stored for an address or CIDR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			components, err := bootstrap.SetupRecords(cmd.Context(), c.settings)
			if err != nil {
				return err
			}
			defer components.Close()

			record, err := components.Records.Get(cmd.Context(), domain.AddressID(c.settings.AddressNamespace, address))
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("no record for %s", address)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	}

	del := &cobra.Command{
		Use:   "delete <address>",
		Short: "Delete the record for an address so it can be re-ingested",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			components, err := bootstrap.SetupRecords(cmd.Context(), c.settings)
			if err != nil {
				return err
			}
			defer components.Close()

			deleted, err := components.Records.Delete(cmd.Context(), domain.AddressID(c.settings.AddressNamespace, address))
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("no record for %s", address)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", address)
			return nil
		},
	}

	cmd.AddCommand(get, del)
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := bootstrap.Authenticator(cmd.Context(), c.settings)
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(subject, security.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "Subject claim of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func (c *cli) geoliteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geolite",
		Short: "Manage the GeoLite ASN database",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Download the latest GeoLite2-ASN database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			components, err := bootstrap.SetupGeoLite(cmd.Context(), c.settings)
			if err != nil {
				return err
			}
			defer components.Close()
			return components.Updater.Update(cmd.Context())
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Skip settings so the command works without any environment.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "blockwatch %s (built %s)\n", info.BuildVersion, info.BuiltAt)
		},
	}
}

func resolvePort(primaryEnv, legacyEnv string, fallback int) int {
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
