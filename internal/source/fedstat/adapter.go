package fedstat

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/russtat/internal/domain"
)

const (
	SourceID   = "fedstat"
	SourceName = "EMISS open data"

	DefaultCatalogURL = "https://fedstat.ru/opendata/list.xml"
)

// Config holds the portal endpoint and per-call timeouts.
type Config struct {
	CatalogURL     string
	ConnectTimeout time.Duration // TCP connect + TLS handshake
	ReadTimeout    time.Duration // max silence while waiting for or reading the response
	UserAgent      string
}

func (c *Config) defaults() {
	if c.CatalogURL == "" {
		c.CatalogURL = DefaultCatalogURL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "russtat/1.0"
	}
}

// Adapter implements source.Portal for the EMISS (fedstat.ru) portal.
type Adapter struct {
	client     *resty.Client
	catalogURL string
}

// NewAdapter creates a portal client. Requests are never retried.
func NewAdapter(cfg Config) *Adapter {
	cfg.defaults()

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	readTimeout := cfg.ReadTimeout
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &idleTimeoutConn{Conn: conn, timeout: readTimeout}, nil
		},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   8,
	}

	client := resty.New().
		SetTransport(transport).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(0)

	return &Adapter{
		client:     client,
		catalogURL: cfg.CatalogURL,
	}
}

// GetSourceID returns the unique identifier for this portal
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this portal
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// FetchCatalog downloads the catalog list document
func (a *Adapter) FetchCatalog(ctx context.Context) ([]byte, error) {
	return a.get(ctx, a.catalogURL)
}

// FetchDocument downloads one dataset document
func (a *Adapter) FetchDocument(ctx context.Context, link string) ([]byte, error) {
	return a.get(ctx, link)
}

func (a *Adapter) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %v: %w", url, err, domain.ErrNetwork)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("GET %s: status %d: %w", url, resp.StatusCode(), domain.ErrNetwork)
	}
	return resp.Body(), nil
}

// idleTimeoutConn pushes the read deadline forward before every read, so a
// transfer fails only after timeout of silence rather than after a fixed total.
type idleTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleTimeoutConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}
