package download

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/loykin/botkeeper/internal/history"
	"github.com/loykin/botkeeper/internal/metrics"
)

// Invoker turns a command line into a single engine call.
type Invoker struct {
	Engine         Engine
	OutputTemplate string // DefaultOutputTemplate when empty
	Logger         *slog.Logger
	Sink           history.Sink // optional
}

// Run parses args and downloads every URL. ErrUsage is returned before the
// engine is touched; engine errors come back unchanged.
func (inv *Invoker) Run(ctx context.Context, args []string) error {
	req, err := ParseArgs(args)
	if err != nil {
		return err
	}
	opts := inv.Options(req)
	log := inv.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("downloading", "urls", len(req.URLs), "format", opts.Format, "output", opts.OutputTemplate)

	err = inv.Engine.Download(ctx, opts, req.URLs)
	metrics.ObserveDownload(len(req.URLs), err)
	inv.record(ctx, req, err)
	if err != nil {
		log.Error("download failed", "error", err)
		return err
	}
	log.Info("download complete", "urls", len(req.URLs))
	return nil
}

// Options builds the engine options for req.
func (inv *Invoker) Options(req Request) Options {
	tmpl := inv.OutputTemplate
	if tmpl == "" {
		tmpl = DefaultOutputTemplate
	}
	return Options{OutputTemplate: tmpl, Format: FormatFilter(req.Resolution)}
}

func (inv *Invoker) record(ctx context.Context, req Request, err error) {
	if inv.Sink == nil {
		return
	}
	rec := history.Record{Name: "ytdl", Status: "ok", Detail: strings.Join(req.URLs, " "), Error: history.ErrString(err)}
	if err != nil {
		rec.Status = "error"
	}
	if serr := inv.Sink.Send(ctx, history.Event{Type: history.EventDownload, OccurredAt: time.Now().UTC(), Record: rec}); serr != nil && inv.Logger != nil {
		inv.Logger.Warn("history sink failed", "event", string(history.EventDownload), "error", serr)
	}
}
