package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Fullex26/uptimegram/internal/config"
	"github.com/Fullex26/uptimegram/internal/daemon"
	"github.com/Fullex26/uptimegram/internal/logging"
	"github.com/Fullex26/uptimegram/internal/setup"
	"github.com/Fullex26/uptimegram/pkg/models"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "uptimegram",
		Short: "🔔 uptimegram — Telegram notifications for uptime check events",
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultConfigPath, "config file path")

	root.AddCommand(
		runCmd(),
		testCmd(),
		emitCmd(),
		checksCmd(),
		renderCmd(),
		setupCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// open loads the config and builds the daemon with the configured logger
func open() (*daemon.Daemon, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log, closer := logging.New(cfg.Log)
	slog.SetDefault(log)

	d, err := daemon.New(cfg, log)
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("initializing daemon: %w", err)
	}
	return d, func() { closer.Close() }, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the notification daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			return d.Run()
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the configured chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			defer d.Close()

			fmt.Println("🔔 Sending test notification...")
			if err := d.TestNotifiers(); err != nil {
				return err
			}
			fmt.Println("✅ Test notification sent!")
			return nil
		},
	}
}

func emitCmd() *cobra.Command {
	var checkID, kind, errDetail string
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Record a check event and dispatch it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			defer d.Close()

			ev, err := d.Emit(cmd.Context(), models.CheckEvent{
				CheckID: checkID,
				Kind:    models.EventKind(kind),
				Error:   errDetail,
			})
			if err != nil {
				return err
			}
			fmt.Printf("recorded %s event %s for check %s\n", ev.Kind, ev.ID, ev.CheckID)
			return nil
		},
	}
	cmd.Flags().StringVar(&checkID, "check", "", "check ID")
	cmd.Flags().StringVar(&kind, "kind", "", "event kind (up, down, paused, restarted, or a custom kind)")
	cmd.Flags().StringVar(&errDetail, "error", "", "error detail for down events")
	_ = cmd.MarkFlagRequired("check")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func checksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "Manage monitored checks",
	}

	var name, url string
	add := &cobra.Command{
		Use:   "add [id]",
		Short: "Add or replace a check",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			defer d.Close()

			check := models.Check{Name: name, URL: url}
			if len(args) == 1 {
				check.ID = args[0]
			}
			saved, err := d.Store().SaveCheck(cmd.Context(), check)
			if err != nil {
				return err
			}
			fmt.Printf("saved check %s (%s)\n", saved.ID, saved.Name)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&url, "url", "", "target URL")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			defer d.Close()

			checks, err := d.Store().ListChecks(cmd.Context())
			if err != nil {
				return err
			}
			if len(checks) == 0 {
				fmt.Println("no checks")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tURL\tSTATUS")
			for _, c := range checks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.URL, c.Status)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func renderCmd() *cobra.Command {
	var checkID, kind, errDetail string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Preview the message an event would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			defer d.Close()

			text, err := d.Preview(cmd.Context(), models.EventKind(kind), checkID, errDetail)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
	cmd.Flags().StringVar(&checkID, "check", "", "check ID")
	cmd.Flags().StringVar(&kind, "kind", string(models.EventDown), "event kind")
	cmd.Flags().StringVar(&errDetail, "error", "Error 500", "error detail")
	_ = cmd.MarkFlagRequired("check")
	return cmd
}

func setupCmd() *cobra.Command {
	var envPath string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setup.Run(cfgPath, envPath)
		},
	}
	cmd.Flags().StringVar(&envPath, "env-file", setup.DefaultEnvPath, "path to env file for credentials")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("uptimegram v%s\nhttps://github.com/Fullex26/uptimegram\n", daemon.Version)
		},
	}
}
