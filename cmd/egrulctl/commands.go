package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark-rom/egrul-bot/internal/egrul/client"
	"github.com/mark-rom/egrul-bot/internal/egrul/service"
	"github.com/mark-rom/egrul-bot/internal/platform/config"
	"github.com/mark-rom/egrul-bot/internal/platform/database"
	"github.com/mark-rom/egrul-bot/internal/platform/health"
	"github.com/mark-rom/egrul-bot/internal/platform/logger"
)

// errFailed marks a registry call that failed after its message was printed.
var errFailed = errors.New("request failed")

type options struct {
	registry config.RegistryConfig
	logLevel string
	asJSON   bool
}

func rootCmd() *cobra.Command {
	cfg := config.FromEnv()
	opts := &options{registry: cfg.Registry, logLevel: "error"}

	cmd := &cobra.Command{
		Use:           "egrulctl",
		Short:         "Query the EGRUL business registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.registry.BaseURL, "base-url", opts.registry.BaseURL, "Registry base URL")
	flags.DurationVar(&opts.registry.Timeout, "timeout", opts.registry.Timeout, "Per-request timeout")
	flags.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")

	cmd.AddCommand(infoCmd(opts), extractCmd(opts), migrateCmd(cfg), versionCmd())
	return cmd
}

func infoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info <inn|ogrn>",
		Short: "Print the company summary for an identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup := service.NewLookup(opts.newClient(), opts.serviceOptions(cmd.ErrOrStderr())...)
			result := lookup.Lookup(cmd.Context(), strings.TrimSpace(args[0]))
			return printResult(cmd.OutOrStdout(), opts.asJSON, result)
		},
	}
}

func extractCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <inn|ogrn>",
		Short: "Request an extraction and print its download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcOpts := append(opts.serviceOptions(cmd.ErrOrStderr()),
				service.WithPollAttempts(opts.registry.PollAttempts),
				service.WithPollInterval(opts.registry.PollInterval),
			)
			extraction := service.NewExtraction(opts.newClient(), svcOpts...)
			result := extraction.RequestDocument(cmd.Context(), strings.TrimSpace(args[0]))
			return printResult(cmd.OutOrStdout(), opts.asJSON, result)
		},
	}
	cmd.Flags().IntVar(&opts.registry.PollAttempts, "poll-attempts", opts.registry.PollAttempts, "Status checks before giving up")
	cmd.Flags().DurationVar(&opts.registry.PollInterval, "poll-interval", opts.registry.PollInterval, "Wait between status checks")
	return cmd
}

func migrateCmd(cfg config.Config) *cobra.Command {
	databaseURL := cfg.Database.URL
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the request log schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("database URL is required (--database-url or DATABASE_URL)")
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), "info")
			if err := database.Migrate(databaseURL, log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", databaseURL, "PostgreSQL connection URL")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "egrulctl version %s\n", health.Version)
		},
	}
}

func (o *options) newClient() *client.Client {
	return client.New(client.Config{
		BaseURL:   o.registry.BaseURL,
		UserAgent: o.registry.UserAgent,
		Timeout:   o.registry.Timeout,
	})
}

func (o *options) serviceOptions(stderr io.Writer) []service.Option {
	return []service.Option{service.WithLogger(logger.NewWithWriter(stderr, o.logLevel))}
}

type jsonResult struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message"`
	Category    string `json:"category,omitempty"`
	Summary     any    `json:"summary,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// printResult writes the user-facing message and turns a failed result into errFailed.
func printResult(w io.Writer, asJSON bool, result service.Result) error {
	if asJSON {
		out := jsonResult{
			OK:          result.OK(),
			Message:     result.Message,
			Category:    string(result.Category()),
			DownloadURL: string(result.Document),
		}
		if result.Summary != nil {
			out.Summary = result.Summary
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		fmt.Fprintln(w, result.Message)
	}
	if !result.OK() {
		return fmt.Errorf("%w: %s", errFailed, result.Category())
	}
	return nil
}

