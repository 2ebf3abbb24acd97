// Package ytmusic talks to the YouTube Music web client API (innertube)
// using browser session headers, the same auth a logged-in tab uses. It
// covers the two calls the enrichment engine needs: filtered song search
// and the privately-owned uploads library.
package ytmusic

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

const (
	APIBase = "https://music.youtube.com/youtubei/v1"
	Origin  = "https://music.youtube.com"

	clientName    = "WEB_REMIX"
	clientVersion = "1.20250203.01.00"
)

type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	BaseURL    string

	logger  hclog.Logger
	headers map[string]string
	sapisid string
}

// NewClient builds a client from a browser headers file: a JSON object of
// header name to value captured from an authenticated music.youtube.com
// request, including the Cookie header.
func NewClient(authFile string, logger hclog.Logger) (*Client, error) {
	data, err := os.ReadFile(authFile)
	if err != nil {
		return nil, fmt.Errorf("read auth file: %w", err)
	}
	var headers map[string]string
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("parse auth file %s: %w", authFile, err)
	}
	return NewClientFromHeaders(headers, logger)
}

// NewClientFromHeaders builds a client from already-loaded browser headers.
func NewClientFromHeaders(headers map[string]string, logger hclog.Logger) (*Client, error) {
	normalized := make(map[string]string, len(headers))
	for name, value := range headers {
		normalized[strings.ToLower(name)] = value
	}
	sapisid := sapisidFromCookie(normalized["cookie"])
	if sapisid == "" {
		return nil, fmt.Errorf("no SAPISID in auth cookie; re-export the browser headers from a logged-in music.youtube.com session")
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		// 15 requests per 10 seconds = 1.5 req/sec
		Limiter: rate.NewLimiter(rate.Every(666*time.Millisecond), 1),
		BaseURL: APIBase,
		logger:  logger,
		headers: normalized,
		sapisid: sapisid,
	}, nil
}

// sapisidFromCookie picks the SAPISID value out of a raw Cookie header,
// falling back to __Secure-3PAPISID which carries the same secret.
func sapisidFromCookie(cookie string) string {
	var fallback string
	for _, part := range strings.Split(cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch name {
		case "SAPISID":
			return value
		case "__Secure-3PAPISID":
			fallback = value
		}
	}
	return fallback
}

// sapisidHash builds the per-request Authorization value the web client
// derives from the SAPISID cookie and the page origin.
func sapisidHash(sapisid string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	sum := sha1.Sum([]byte(ts + " " + sapisid + " " + Origin))
	return fmt.Sprintf("SAPISIDHASH %s_%x", ts, sum)
}

// call POSTs an innertube endpoint with the web client context merged into
// body and decodes the JSON response. All requests go through the shared
// rate limiter.
func (c *Client) call(ctx context.Context, endpoint string, body map[string]any, query url.Values) (map[string]any, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    clientName,
				"clientVersion": clientVersion,
				"hl":            "en",
			},
			"user": map[string]any{},
		},
	}
	for key, value := range body {
		payload[key] = value
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	requestURL := c.BaseURL + "/" + endpoint + "?alt=json"
	if len(query) > 0 {
		requestURL += "&" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	for name, value := range c.headers {
		switch name {
		// Controlled below, or computed per request by the transport.
		case "authorization", "content-type", "content-length", "host", "accept-encoding":
			continue
		}
		req.Header.Set(name, value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", Origin)
	req.Header.Set("X-Origin", Origin)
	req.Header.Set("Authorization", sapisidHash(c.sapisid, time.Now()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("%s: HTTP %d | %s", endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return result, nil
}
