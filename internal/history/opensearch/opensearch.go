package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/botkeeper/internal/history"
)

// DefaultTimeout bounds one indexing request when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Options configures a Sink. Events land in "<Index>-<type>".
type Options struct {
	BaseURL  string
	Index    string
	Username string
	Password string
	Timeout  time.Duration
}

// Sink indexes events into OpenSearch (or Elasticsearch) over its REST API.
type Sink struct {
	client *http.Client
	opts   Options
}

func New(opts Options) *Sink {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Sink{client: &http.Client{Timeout: opts.Timeout}, opts: opts}
}

// IndexFor returns the index an event of type t is written to.
func (s *Sink) IndexFor(t history.EventType) string {
	if t == "" {
		return s.opts.Index
	}
	return s.opts.Index + "-" + string(t)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.opts.BaseURL, s.IndexFor(e.Type))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.opts.Username != "" {
		req.SetBasicAuth(s.opts.Username, s.opts.Password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opensearch %s: status %d: %s", u, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
