package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/loykin/botkeeper/internal/history"
)

type recordingEngine struct {
	calls []engineCall
	err   error
}

type engineCall struct {
	opts Options
	urls []string
}

func (e *recordingEngine) Download(_ context.Context, opts Options, urls []string) error {
	e.calls = append(e.calls, engineCall{opts: opts, urls: append([]string(nil), urls...)})
	return e.err
}

type memSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (m *memSink) Send(_ context.Context, e history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestInvokerNoURLsDoesNotCallEngine(t *testing.T) {
	eng := &recordingEngine{}
	inv := &Invoker{Engine: eng, Logger: quietLogger()}
	for _, args := range [][]string{nil, {"720"}} {
		if err := inv.Run(context.Background(), args); !errors.Is(err, ErrUsage) {
			t.Fatalf("args %v: expected ErrUsage, got %v", args, err)
		}
	}
	if len(eng.calls) != 0 {
		t.Fatalf("engine invoked %d times", len(eng.calls))
	}
}

func TestInvokerResolutionAndURL(t *testing.T) {
	eng := &recordingEngine{}
	inv := &Invoker{Engine: eng, Logger: quietLogger()}
	if err := inv.Run(context.Background(), []string{"720", "http://example.com/a"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(eng.calls) != 1 {
		t.Fatalf("expected one engine call, got %d", len(eng.calls))
	}
	c := eng.calls[0]
	if c.opts.Format != "best[height<=720]" {
		t.Fatalf("format: %q", c.opts.Format)
	}
	if c.opts.OutputTemplate != DefaultOutputTemplate {
		t.Fatalf("template: %q", c.opts.OutputTemplate)
	}
	if !reflect.DeepEqual(c.urls, []string{"http://example.com/a"}) {
		t.Fatalf("urls: %v", c.urls)
	}
}

func TestInvokerURLsOnlyKeepsOrder(t *testing.T) {
	eng := &recordingEngine{}
	inv := &Invoker{Engine: eng, Logger: quietLogger()}
	if err := inv.Run(context.Background(), []string{"http://example.com/a", "http://example.com/b"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(eng.calls) != 1 {
		t.Fatalf("expected one engine call, got %d", len(eng.calls))
	}
	c := eng.calls[0]
	if c.opts.Format != "" {
		t.Fatalf("expected no format, got %q", c.opts.Format)
	}
	if !reflect.DeepEqual(c.urls, []string{"http://example.com/a", "http://example.com/b"}) {
		t.Fatalf("urls out of order: %v", c.urls)
	}
}

func TestInvokerCustomTemplate(t *testing.T) {
	eng := &recordingEngine{}
	inv := &Invoker{Engine: eng, OutputTemplate: "/tmp/x/%(title)s.%(ext)s", Logger: quietLogger()}
	if err := inv.Run(context.Background(), []string{"u"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := eng.calls[0].opts.OutputTemplate; got != "/tmp/x/%(title)s.%(ext)s" {
		t.Fatalf("template: %q", got)
	}
}

func TestInvokerEngineErrorPassesThrough(t *testing.T) {
	boom := errors.New("engine exploded")
	eng := &recordingEngine{err: boom}
	sink := &memSink{}
	inv := &Invoker{Engine: eng, Logger: quietLogger(), Sink: sink}
	err := inv.Run(context.Background(), []string{"u1", "u2"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if len(eng.calls) != 1 {
		t.Fatalf("engine retried: %d calls", len(eng.calls))
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one history event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != history.EventDownload || ev.Record.Status != "error" || ev.Record.Error != boom.Error() {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Record.Detail != "u1 u2" {
		t.Fatalf("detail: %q", ev.Record.Detail)
	}
}

func TestYtdlpEngineCommandNeverInstallsWithBinary(t *testing.T) {
	e := &YtdlpEngine{Binary: "/nonexistent/yt-dlp", Install: true}
	if err := e.ensureInstalled(context.Background()); err != nil {
		t.Fatalf("explicit binary should skip install: %v", err)
	}
	if e.Command(Options{OutputTemplate: DefaultOutputTemplate}) == nil {
		t.Fatal("nil command")
	}
}

func TestYtdlpEngineMissingBinary(t *testing.T) {
	e := &YtdlpEngine{Binary: "/nonexistent/yt-dlp"}
	err := e.Download(context.Background(), Options{OutputTemplate: t.TempDir() + "/%(id)s.%(ext)s"}, []string{"http://example.com/a"})
	if err == nil {
		t.Fatal("expected error for missing yt-dlp binary")
	}
}
