package download

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/hostpage/hostpagetest"
	"github.com/chr1sbest/imagebatch/internal/logger"
	"github.com/chr1sbest/imagebatch/internal/resilience"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadWritesFile(t *testing.T) {
	srv := newImageServer(t)
	dir := filepath.Join(t.TempDir(), "out")
	d := New(dir, NewHTTPFetcher(5*time.Second), logger.NewNoopLogger())

	path, ok := d.Download(context.Background(), srv.URL+"/ok.png", "cat_0102_030405.png")
	if !ok || path != filepath.Join(dir, "cat_0102_030405.png") {
		t.Fatalf("Download = %q, %v", path, ok)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if string(data) != string(pngBytes) {
		t.Errorf("saved bytes differ")
	}
}

func TestDownloadFailureIsSwallowed(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := New(dir, NewHTTPFetcher(5*time.Second), logger.NewNoopLogger())

	for _, url := range []string{srv.URL + "/missing.png", ""} {
		if path, ok := d.Download(context.Background(), url, "x.png"); ok || path != "" {
			t.Errorf("Download(%q) = %q, %v, want failure", url, path, ok)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files, got %d", len(entries))
	}

	if _, err := d.Save(context.Background(), srv.URL+"/missing.png", "x.png"); err == nil {
		t.Error("Save should report the 404")
	}
}

func TestSaveAvoidsCollisions(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := New(dir, NewHTTPFetcher(5*time.Second), logger.NewNoopLogger())

	var paths []string
	for i := 0; i < 3; i++ {
		p, err := d.Save(context.Background(), srv.URL+"/ok.png", "same.png")
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		paths = append(paths, filepath.Base(p))
	}
	want := []string{"same.png", "same_1.png", "same_2.png"}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain_0101_000000.png", "plain_0101_000000.png"},
		{"a/b\\c_0101_000000.png", "a_b_c_0101_000000.png"},
		{"what? <now>: \"yes\"|*.png", "what_ _now__ _yes___.png"},
		{"line\nbreak.png", "line_break.png"},
		{"  ..  ", "image.png"},
		{"画像_0101_000000.png", "画像_0101_000000.png"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPageFetcherDecodesBase64(t *testing.T) {
	page := hostpagetest.New()
	var gotURL string
	page.OnCall = func(_ *hostpagetest.Fake, el *hostpage.Element, fn string, args []any) (any, error) {
		if el != nil {
			t.Errorf("page fetch should run without a node, got %s", el)
		}
		gotURL = args[0].(string)
		return base64.StdEncoding.EncodeToString(pngBytes), nil
	}

	data, err := PageFetcher{Doc: page}.Fetch(context.Background(), "blob:https://host/123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotURL != "blob:https://host/123" {
		t.Errorf("url = %q", gotURL)
	}
	if string(data) != string(pngBytes) {
		t.Error("decoded bytes differ")
	}
}

func TestChainFallsBack(t *testing.T) {
	srv := newImageServer(t)
	page := hostpagetest.New()
	page.OnCall = func(*hostpagetest.Fake, *hostpage.Element, string, []any) (any, error) {
		return nil, errors.New("TypeError: Failed to fetch")
	}
	chain := Chain{PageFetcher{Doc: page}, NewHTTPFetcher(5 * time.Second)}

	data, err := chain.Fetch(context.Background(), srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data) != len(pngBytes) {
		t.Errorf("got %d bytes, want %d", len(data), len(pngBytes))
	}

	if _, err := (Chain{}).Fetch(context.Background(), "x"); err == nil {
		t.Error("empty chain should fail")
	}
}

func TestHTTPFetcherRejectsOtherSchemes(t *testing.T) {
	if _, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), "blob:https://host/1"); err == nil {
		t.Error("expected scheme error")
	}
}

type countingFetcher struct {
	calls int
	errs  []error
}

func (c *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return pngBytes, nil
}

func TestHTTPFetcherReportsStatus(t *testing.T) {
	srv := newImageServer(t)
	_, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), srv.URL+"/missing.png")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "404 Not Found") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestGuardedSkipsAfterRepeatedFailures(t *testing.T) {
	boom := errors.New("blocked")
	inner := &countingFetcher{errs: []error{boom, boom, boom}}
	g := Guarded{
		Fetcher: inner,
		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Hour}),
	}

	for i := 0; i < 2; i++ {
		if _, err := g.Fetch(context.Background(), "https://img.test/a.png"); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected inner error, got %v", i, err)
		}
	}
	if _, err := g.Fetch(context.Background(), "https://img.test/a.png"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("open breaker should not call through: %d calls", inner.calls)
	}
}
