package download

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/task"
)

const (
	// FileField holds the local path of a fetched torrent.
	FileField = "file"

	progressInterval = 1024 * 1024
	dirPerm          = 0o755
)

// ErrMagnet is returned for magnet URIs, which have nothing to fetch.
var ErrMagnet = errors.New("magnet links are not fetched")

// IsMagnet reports whether u is a magnet URI.
func IsMagnet(u string) bool {
	return strings.HasPrefix(u, "magnet:")
}

// Fetcher saves entry URLs to temp files.
type Fetcher struct {
	TempDir    string
	HTTPClient *http.Client
}

func NewFetcher(tempDir string, hc *http.Client) *Fetcher {
	if hc == nil {
		hc = &http.Client{Timeout: time.Minute}
	}

	return &Fetcher{TempDir: tempDir, HTTPClient: hc}
}

// FetchEntry downloads the entry's url and stores the temp file path in the
// entry's file field.
func (f *Fetcher) FetchEntry(ctx context.Context, e *task.Entry) error {
	path, err := f.Fetch(ctx, e.URL())
	if err != nil {
		return err
	}

	e.Set(FileField, path)

	return nil
}

// Fetch saves the content behind rawURL into a new temp file and returns its
// path. http(s) and file URLs are supported.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	logger := logctx.LoggerFromContext(ctx).With("url", rawURL)

	if IsMagnet(rawURL) {
		return "", ErrMagnet
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	var (
		body  io.ReadCloser
		total int64
	)

	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := f.HTTPClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()

			return "", fmt.Errorf("failed to fetch %s: unexpected status %s", rawURL, resp.Status)
		}

		body, total = resp.Body, resp.ContentLength
	case "file":
		file, err := os.Open(u.Path)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", u.Path, err)
		}

		if info, err := file.Stat(); err == nil {
			total = info.Size()
		}

		body = file
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	defer body.Close()

	if err := os.MkdirAll(f.TempDir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	sum := sha1.Sum([]byte(rawURL))

	out, err := os.CreateTemp(f.TempDir, hex.EncodeToString(sum[:4])+"-*.torrent")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	pr := newProgressReader(body, total, progressInterval, func(read, total int64) {
		logger.Debug("fetch progress", "downloaded", humanize.Bytes(uint64(read)), "total", humanize.Bytes(uint64(max(total, 0))))
	})

	written, err := io.Copy(out, pr)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(out.Name())

		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	logger.Debug("fetched torrent", "file", out.Name(), "size", humanize.Bytes(uint64(written)))

	return out.Name(), nil
}
