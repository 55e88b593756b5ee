package feedsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/net/proxy"

	"blockwatch/internal/config"
)

var (
	ErrFeedTooLarge = errors.New("feed exceeds size limit")
	ErrHostBlocked  = errors.New("feed host is blocked")
)

// HTTPSource downloads feeds over HTTP(S), optionally through a SOCKS5 proxy.
type HTTPSource struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	blocked   HostBlocklist
}

func NewHTTPSource(settings config.FetchSettings) (*HTTPSource, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if settings.SOCKS5Proxy != "" {
		dialer, err := socksDialer(settings.SOCKS5Proxy, settings.Timeout)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dialer
		log.Info("Feed downloads routed through SOCKS5 proxy", "proxy", settings.SOCKS5Proxy)
	}

	return NewHTTPSourceWithClient(&http.Client{Timeout: settings.Timeout, Transport: transport}, settings), nil
}

func NewHTTPSourceWithClient(client *http.Client, settings config.FetchSettings) *HTTPSource {
	return &HTTPSource{
		client:    client,
		maxBytes:  settings.MaxBytes,
		userAgent: settings.UserAgent,
		blocked:   NewHostBlocklist(settings.BlockedHosts),
	}
}

func socksDialer(address string, timeout time.Duration) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	var auth *proxy.Auth
	if at := strings.LastIndex(address, "@"); at >= 0 {
		user, password, _ := strings.Cut(address[:at], ":")
		auth = &proxy.Auth{User: user, Password: password}
		address = address[at+1:]
	}
	address = strings.TrimPrefix(address, "socks5://")

	base, err := proxy.SOCKS5("tcp", address, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("configure socks5 proxy: %w", err)
	}
	if cd, ok := base.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return base.Dial(network, addr)
	}, nil
}

// Fetch returns the body of url as text. Blocked hosts, non-2xx responses and
// bodies larger than the configured limit are errors.
func (s *HTTPSource) Fetch(ctx context.Context, url string) (string, error) {
	if s.blocked.Blocks(url) {
		return "", fmt.Errorf("%w: %s", ErrHostBlocked, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if int64(len(content)) > s.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes from %s", ErrFeedTooLarge, s.maxBytes, url)
	}

	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return string(content), nil
}
