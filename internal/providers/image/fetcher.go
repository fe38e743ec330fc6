package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pandarelay/internal/domain"
	"pandarelay/internal/infra"
)

const defaultMaxDownloadBytes = 25 << 20

// FetcherOptions configures remote image downloads.
type FetcherOptions struct {
	Timeout    time.Duration
	MaxBytes   int64
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Fetcher downloads source images referenced by URL.
type Fetcher struct {
	timeout    time.Duration
	maxBytes   int64
	httpClient *http.Client
	logger     *infra.Logger
}

// NewFetcher constructs a Fetcher with a bounded timeout.
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxDownloadBytes
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Fetcher{timeout: timeout, maxBytes: maxBytes, httpClient: httpClient, logger: logger}
}

// Fetch returns the raw bytes served at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "Invalid image URL", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidInput, "Invalid image URL", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, f.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn().Int("status", resp.StatusCode).Str("host", parsed.Host).Msg("image: download rejected")
		return nil, domain.UpstreamError(resp.StatusCode, fmt.Sprintf("Failed to download image: status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, f.transportError(err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, domain.NewError(domain.KindData, fmt.Sprintf("Image exceeds %d bytes", f.maxBytes), nil)
	}
	f.logger.Debug().Str("host", parsed.Host).Int("bytes", len(data)).Msg("image: downloaded source")
	return data, nil
}

func (f *Fetcher) transportError(err error) error {
	if domain.IsTimeout(err) {
		return domain.NewError(domain.KindTimeout, "Image download timed out", err)
	}
	return domain.NewError(domain.KindTransport, "Failed to download image: "+domain.Cause(err), err)
}
