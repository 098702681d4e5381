package download

import "context"

// Options is the configuration handed to the download engine.
type Options struct {
	OutputTemplate string
	Format         string // format selector; empty leaves the engine default
}

// FormatFilter returns the "best format not taller than resolution" selector.
func FormatFilter(resolution string) string {
	if resolution == "" {
		return ""
	}
	return "best[height<=" + resolution + "]"
}

// Engine downloads urls in order using opts.
type Engine interface {
	Download(ctx context.Context, opts Options, urls []string) error
}

// EngineFunc adapts a plain function to Engine.
type EngineFunc func(ctx context.Context, opts Options, urls []string) error

func (f EngineFunc) Download(ctx context.Context, opts Options, urls []string) error {
	return f(ctx, opts, urls)
}
