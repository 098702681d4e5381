package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/loykin/botkeeper"
	"github.com/loykin/botkeeper/pkg/client"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func createCheckCommand(globalFlags *GlobalFlags, flags *RemoteFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe once and start the target if it is not running",
		Long: `Probe once and start the target if it is not running.
Exits 0 unless the policy is fail-closed and the probe itself failed.

Examples:
  botkeeper check
  botkeeper check --api-url http://pi:9090   # ask a running serve to check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, globalFlags, flags)
		},
	}
	addRemoteFlags(cmd, flags)
	return cmd
}

func runCheck(cmd *cobra.Command, globalFlags *GlobalFlags, flags *RemoteFlags) error {
	if flags.APIUrl != "" {
		c, err := newClient(flags)
		if err != nil {
			return err
		}
		res, err := c.Check(cmd.Context())
		printJSON(cmd.OutOrStdout(), res)
		return err
	}

	rt, err := botkeeper.Open(globalFlags.ConfigPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	wd, err := rt.NewWatchdog()
	if err != nil {
		return err
	}
	_, err = wd.Check(cmd.Context())
	return err
}

func createWatchCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Check on the configured schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, globalFlags, false)
		},
	}
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch and expose status, checks and metrics over HTTP",
		Long: `Watch and expose status, checks and metrics over HTTP.

Endpoints ([server].base_path prefixes all but /metrics):
  GET  /status      last check outcome
  POST /check       run a check now
  GET  /processes   matching processes
  GET  /metrics     prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, globalFlags, true)
		},
	}
}

func runWatch(cmd *cobra.Command, globalFlags *GlobalFlags, serve bool) error {
	rt, err := botkeeper.Open(globalFlags.ConfigPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	wd, err := rt.NewWatchdog()
	if err != nil {
		return err
	}
	sched, err := rt.NewScheduler(wd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	var srv *http.Server
	if serve {
		srv = rt.NewHTTPServer(wd)
		go func() {
			rt.Logger.Info("http server listening", "addr", srv.Addr, "base_path", rt.Config.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	rt.Logger.Info("watching", "detector", wd.Detector.Describe(), "schedule", rt.Config.Probe.Schedule, "policy", wd.Policy.String())

	select {
	case <-ctx.Done():
		rt.Logger.Info("shutting down")
	case err = <-srvErr:
		rt.Logger.Error("http server failed", "error", err)
	}
	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return err
}

func createStatusCommand(flags *RemoteFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last check of a running botkeeper serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.APIUrl == "" {
				flags.APIUrl = client.DefaultConfig().BaseURL
			}
			c, err := newClient(flags)
			if err != nil {
				return err
			}
			out, ok, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no check has run yet")
				return nil
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	addRemoteFlags(cmd, flags)
	return cmd
}

func createPsCommand(globalFlags *GlobalFlags, flags *PsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps [match]",
		Short: "List processes matching the configured user and substring",
		Long: `List processes matching the configured user and substring.

Examples:
  botkeeper ps
  botkeeper ps main.js --user pi
  botkeeper ps --all node --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPs(cmd, globalFlags, flags, args)
		},
	}
	addRemoteFlags(cmd, &flags.RemoteFlags)
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&flags.User, "user", "", "owner to filter on (default from config)")
	cmd.Flags().BoolVar(&flags.All, "all", false, "match processes of every user")
	return cmd
}

func runPs(cmd *cobra.Command, globalFlags *GlobalFlags, flags *PsFlags, args []string) error {
	var (
		user, match string
		rows        []client.ProcessInfo
	)
	if flags.APIUrl != "" {
		c, err := newClient(&flags.RemoteFlags)
		if err != nil {
			return err
		}
		q := client.ProcessQuery{}
		if len(args) == 1 {
			q.Match = args[0]
		}
		if flags.All {
			empty := ""
			q.User = &empty
		} else if flags.User != "" {
			q.User = &flags.User
		}
		list, err := c.Processes(cmd.Context(), q)
		if err != nil {
			return err
		}
		user, match, rows = list.User, list.Match, list.Processes
	} else {
		cfg, err := loadConfig(globalFlags)
		if err != nil {
			return err
		}
		d := cfg.Probe.ProcessDetector()
		if len(args) == 1 {
			d.Match = args[0]
		}
		if flags.User != "" {
			d.User = flags.User
		}
		if flags.All {
			d.User = ""
		}
		found, err := d.Matches(cmd.Context())
		if err != nil {
			return err
		}
		user, match = d.User, d.Match
		for _, p := range found {
			rows = append(rows, client.ProcessInfo{PID: p.PID, User: p.User, Name: p.Name, Cmdline: p.Cmdline})
		}
	}

	w := cmd.OutOrStdout()
	if flags.JSON {
		if rows == nil {
			rows = []client.ProcessInfo{}
		}
		printJSON(w, rows)
		return nil
	}
	if len(rows) == 0 {
		if user == "" {
			user = "*"
		}
		_, _ = fmt.Fprintf(w, "No processes of %s matching %q\n", user, match)
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("PID", "User", "Name", "Command")
	for _, p := range rows {
		if err := table.Append(strconv.Itoa(int(p.PID)), p.User, p.Name, truncate(p.Cmdline, 80)); err != nil {
			return err
		}
	}
	return table.Render()
}

func newClient(f *RemoteFlags) (*client.Client, error) {
	return client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}
