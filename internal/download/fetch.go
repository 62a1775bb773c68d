package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/resilience"
)

// maxImageBytes bounds a single fetched image.
const maxImageBytes = 64 << 20

// pageFetchJS fetches url from inside the page, so session cookies and blob:
// URLs resolve, and returns the body as base64.
const pageFetchJS = `async function (node, url) {
  const res = await fetch(url, { credentials: "include" });
  if (!res.ok) throw new Error("HTTP " + res.status);
  const blob = await res.blob();
  const buf = new Uint8Array(await blob.arrayBuffer());
  let bin = "";
  for (let i = 0; i < buf.length; i += 0x8000) {
    bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
  }
  return btoa(bin);
}`

// PageFetcher fetches through the host page.
type PageFetcher struct {
	Doc hostpage.Document
}

func (p PageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var encoded string
	if err := p.Doc.Call(ctx, nil, pageFetchJS, &encoded, url); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode page fetch result: %w", err)
	}
	return data, nil
}

// StatusError is a non-200 response to a direct fetch.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// HTTPFetcher fetches plain http(s) URLs directly.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) HTTPFetcher {
	return HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (h HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported url scheme: %s", truncate(url, 40))
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: truncate(url, 80), Code: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

// Chain tries each fetcher in order and returns the first success.
type Chain []Fetcher

func (c Chain) Fetch(ctx context.Context, url string) ([]byte, error) {
	var errs []error
	for _, f := range c {
		data, err := f.Fetch(ctx, url)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no fetcher configured")
	}
	return nil, errors.Join(errs...)
}

// Guarded skips Fetcher while its circuit breaker is open.
type Guarded struct {
	Fetcher Fetcher
	Breaker *resilience.CircuitBreaker
}

func (g Guarded) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := g.Breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = g.Fetcher.Fetch(ctx, url)
		return err
	})
	return data, err
}
