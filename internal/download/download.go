// Package download saves generated images to disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/chr1sbest/imagebatch/internal/logger"
)

// Fetcher retrieves the bytes behind a resource URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Downloader fetches images and writes them under Dir.
type Downloader struct {
	dir     string
	fetcher Fetcher
	log     logger.Logger
}

// New returns a Downloader writing into dir.
func New(dir string, fetcher Fetcher, log logger.Logger) *Downloader {
	return &Downloader{dir: dir, fetcher: fetcher, log: log}
}

// Dir returns the download directory.
func (d *Downloader) Dir() string { return d.dir }

// Download saves url under filename and returns the path written. Failures
// are logged and reported only through ok.
func (d *Downloader) Download(ctx context.Context, url, filename string) (path string, ok bool) {
	path, err := d.Save(ctx, url, filename)
	if err != nil {
		d.log.Warn("Download failed",
			logger.F("url", truncate(url, 120)),
			logger.F("filename", filename),
			logger.F("error", err),
		)
		return "", false
	}
	d.log.Info("Image saved", logger.F("path", path))
	return path, true
}

// Save fetches url and writes it under a sanitized, non-colliding form of
// filename. It returns the path written.
func (d *Downloader) Save(ctx context.Context, url, filename string) (string, error) {
	if url == "" {
		return "", errors.New("empty image url")
	}
	data, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("fetched image is empty")
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path, err := uniquePath(filepath.Join(d.dir, SanitizeFilename(filename)))
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// SanitizeFilename replaces path separators, characters most filesystems
// reject and control characters with underscores.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" {
		return "image.png"
	}
	return name
}

// uniquePath appends _1, _2, ... before the extension until path is free.
func uniquePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 1; n < 1000; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return "", fmt.Errorf("no free filename for %s", path)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
