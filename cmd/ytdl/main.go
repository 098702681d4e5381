package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/botkeeper"
	"github.com/loykin/botkeeper/internal/download"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes ytdl with args and returns the process exit status.
func run(args []string, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := buildRoot(nil)
	root.SetArgs(args)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, download.ErrUsage) {
			_, _ = fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

// Flags holds ytdl command line flags.
type Flags struct {
	ConfigPath string
	Output     string
	Binary     string
	Install    bool
}

// buildRoot returns the ytdl command. A nil engine means yt-dlp.
func buildRoot(engine download.Engine) *cobra.Command {
	flags := &Flags{}
	cmd := &cobra.Command{
		Use:   "ytdl [resolution] <url> [url...]",
		Short: "Download videos with yt-dlp",
		Long: `Download one or more videos with yt-dlp into ./downloads.

A leading all-digit argument caps the video height. Flags go before the
first positional argument; everything after it is passed on unchanged.
Use -- when the first URL or id starts with a dash.

Examples:
  ytdl 720 https://www.youtube.com/watch?v=abc
  ytdl https://example.com/a https://example.com/b`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, flags, engine, args)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "yt-dlp output template (default from config)")
	cmd.Flags().StringVar(&flags.Binary, "binary", "", "path to the yt-dlp executable")
	cmd.Flags().BoolVar(&flags.Install, "install", false, "download a managed yt-dlp when none is configured")
	return cmd
}

func runDownload(cmd *cobra.Command, flags *Flags, engine download.Engine, args []string) error {
	if _, err := download.ParseArgs(args); err != nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), download.Usage(cmd.Name()))
		return err
	}

	rt, err := botkeeper.Open(flags.ConfigPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if flags.Output != "" {
		rt.Config.Download.OutputTemplate = flags.Output
	}
	if flags.Binary != "" {
		rt.Config.Download.Binary = flags.Binary
	}
	if flags.Install {
		rt.Config.Download.Install = true
	}
	inv := rt.NewInvoker()
	if engine != nil {
		inv.Engine = engine
	}
	return inv.Run(cmd.Context(), args)
}
