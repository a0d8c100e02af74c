package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"safaridl/pkg/session"
)

// Browser-like headers the content service expects. The cookie header is
// injected per request, and only for the service's own host.
var defaultHeaders = map[string]string{
	"accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
	"accept-language":           "it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7",
	"cache-control":             "no-cache",
	"pragma":                    "no-cache",
	"referer":                   "https://www.safaribooksonline.com/home/",
	"upgrade-insecure-requests": "1",
	"user-agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/62.0.3202.94 Safari/537.36",
}

// API is a thin HTTP helper shared by the content-service client and the
// asset fetcher. It carries the session cookies and decides per request
// whether they apply.
type API struct {
	client     *http.Client
	cookies    session.Cookies
	cookieHost string
}

func NewAPI(cookies session.Cookies, cookieHost string) *API {
	return &API{client: http.DefaultClient, cookies: cookies, cookieHost: cookieHost}
}

func (a *API) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	if u, err := url.Parse(rawURL); err == nil && strings.Contains(u.Host, a.cookieHost) {
		req.Header.Set("cookie", a.cookies.Header())
	}
	return req, nil
}

// GetJSON fetches the URL and decodes the response body into v.
func (a *API) GetJSON(ctx context.Context, rawURL string, v any) error {
	raw, err := a.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Get fetches the URL and returns the whole response body.
func (a *API) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := a.newRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Stream copies the response body into w without buffering it whole,
// used for asset downloads.
func (a *API) Stream(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := a.newRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status for %s: %s", rawURL, resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
