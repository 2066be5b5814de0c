package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Opener opens a preview source for reading.
type Opener func(ctx context.Context, src string) (io.ReadCloser, error)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// OpenSource opens an http(s) url, a file url or a local path.
func OpenSource(ctx context.Context, src string) (io.ReadCloser, error) {
	u, err := url.Parse(src)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return openHTTP(ctx, src)
		case "file":
			src = filepath.FromSlash(u.Path)
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	return f, nil
}

func openHTTP(ctx context.Context, src string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: %s", src, resp.Status)
	}
	return resp.Body, nil
}

// Ext returns the lower-cased extension of a path or url path.
func Ext(src string) string {
	if u, err := url.Parse(src); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return strings.ToLower(path.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(src))
}
