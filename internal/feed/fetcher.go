package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/wazeportal/ingest/config"
	apperrors "github.com/wazeportal/ingest/internal/errors"
	"github.com/wazeportal/ingest/internal/models"
)

// maxBodyBytes caps a single feed payload read. Partner feeds are a few MB
// at worst; anything larger is a broken endpoint.
const maxBodyBytes = 64 << 20

// Fetcher retrieves and decodes partner feed payloads.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.FeedResponse, error)
}

// HTTPFetcher is the production Fetcher backed by net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher with separate connect and total request
// timeouts.
func NewHTTPFetcher(cfg config.FeedConfig) *HTTPFetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConns:        10,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		userAgent: cfg.UserAgent,
	}
}

// Fetch performs one GET against a partner feed and decodes the payload.
// Any failure returns a FeedError tagged with the stage that broke.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*models.FeedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.FeedError{URL: url, Stage: "transport", Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.FeedError{URL: url, Stage: "transport", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.FeedError{
			URL:   url,
			Stage: "status",
			Err:   fmt.Errorf("%w: %d", apperrors.ErrFeedStatus, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.FeedError{URL: url, Stage: "transport", Err: err}
	}

	var payload models.FeedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.FeedError{
			URL:   url,
			Stage: "decode",
			Err:   fmt.Errorf("%w: %v", apperrors.ErrFeedMalformed, err),
		}
	}
	return &payload, nil
}
