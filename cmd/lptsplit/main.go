package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lptsplit/lptsplit"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := &cobra.Command{
		Use:   "lptsplit",
		Short: "Split a line printer spool into rendered documents",
		Long: `lptsplit follows a printer output file written by a legacy system,
splits it into print jobs at the end-of-list banners and renders every job
to its own document through lpt2pdf.

Examples:
  lptsplit run --prtfile=/var/spool/lpt.prt --pdfdir=/srv/pdf
  lptsplit run --config=lptsplit.toml --daemonize
  lptsplit status --api-url=http://localhost:8099/api`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML/YAML config file (optional)")

	root.AddCommand(
		createRunCommand(globalFlags),
		createStatusCommand(),
		createVersionCommand(),
	)
	return root
}

func createRunCommand(globalFlags *GlobalFlags) *cobra.Command {
	f := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor the printer file and render jobs",
		Long: `Truncate the printer file, then follow it until SIGINT or SIGTERM.
Each job between two pairs of end-of-list banners is rendered into
<pdfdir>/print-YYYY_MM_DD_HH_MM_SS.<ext>. A job still open at shutdown
is finalized as is.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.ConfigPath = globalFlags.ConfigPath
			cfg, err := lptsplit.LoadConfig(f.ConfigPath)
			if err != nil {
				return err
			}
			applyRunFlags(cfg, f, cmd.Flags().Changed)

			if f.Daemonize {
				if err := cfg.Validate(); err != nil {
					return err
				}
				pid, err := daemonize(os.Args[1:], cfg.Log.File)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "lptsplit started with PID %d\n", pid)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMonitor(ctx, cfg)
		},
	}
	bindRunFlags(cmd, f)
	return cmd
}

func runMonitor(ctx context.Context, cfg *lptsplit.Config) error {
	m, err := lptsplit.New(cfg)
	if err != nil {
		return err
	}
	runErr := m.Run(ctx)
	if err := m.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func createStatusCommand() *cobra.Command {
	f := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running monitor",
		Long: `Query the read-only status API of a running monitor.

Examples:
  lptsplit status
  lptsplit status --api-url=http://printhost:8099/api --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewAPIClient(f.APIUrl, f.APITimeout)
			if !c.IsReachable() {
				return fmt.Errorf("monitor not running: no status API at %s", c.baseURL)
			}
			st, err := c.Status()
			if err != nil {
				return err
			}
			if f.JSON {
				printJSON(cmd.OutOrStdout(), st)
				return nil
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "status API URL (default http://localhost:8099/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print the raw JSON snapshot")
	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "lptsplit", version)
		},
	}
}
