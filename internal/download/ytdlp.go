package download

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lrstanley/go-ytdlp"
)

// YtdlpEngine drives the yt-dlp binary through go-ytdlp.
type YtdlpEngine struct {
	// Binary is an explicit yt-dlp path; empty resolves it from PATH
	// (or from the managed install when Install is set).
	Binary string
	// Install downloads a managed yt-dlp build when none is available.
	Install bool
	Logger  *slog.Logger

	installOnce sync.Once
	installErr  error
}

func (e *YtdlpEngine) ensureInstalled(ctx context.Context) error {
	if !e.Install || e.Binary != "" {
		return nil
	}
	e.installOnce.Do(func() {
		_, e.installErr = ytdlp.Install(ctx, nil)
	})
	return e.installErr
}

// Command builds the yt-dlp invocation for opts without running it.
func (e *YtdlpEngine) Command(opts Options) *ytdlp.Command {
	cmd := ytdlp.New().Output(opts.OutputTemplate)
	if opts.Format != "" {
		cmd = cmd.Format(opts.Format)
	}
	if e.Binary != "" {
		cmd = cmd.SetExecutable(e.Binary)
	}
	return cmd
}

func (e *YtdlpEngine) Download(ctx context.Context, opts Options, urls []string) error {
	if err := e.ensureInstalled(ctx); err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}
	res, err := e.Command(opts).Run(ctx, urls...)
	if err != nil {
		return err
	}
	if e.Logger != nil && res != nil {
		e.Logger.Debug("yt-dlp finished", "exit_code", res.ExitCode, "urls", len(urls))
	}
	return nil
}
