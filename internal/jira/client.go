// Package jira provides the HTTP client, bulk-create wrapper, and payload
// builder for Jira's REST API v3.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout bounds one bulk-create call when the caller sets none.
const DefaultTimeout = 30 * time.Second

// Client provides authenticated HTTP access to a Jira instance.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a new Jira client.
func NewClient(url, username, apiToken string) *Client {
	return &Client{
		URL:      strings.TrimSuffix(url, "/"),
		Username: username,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// transientRetryMaxElapsed caps how long a single request keeps retrying
// rate-limit and gateway errors before the failure surfaces.
const transientRetryMaxElapsed = 20 * time.Second

func newTransientBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = transientRetryMaxElapsed
	return bo
}

// isTransientStatus reports whether an HTTP status is worth retrying:
// Jira rate limiting and upstream gateway hiccups.
func isTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// doRequest executes an authenticated request, retrying transient statuses,
// and returns the final status code and body. Non-2xx responses are returned
// to the caller, not turned into errors here; the bulk wrapper needs failed
// bodies intact.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte) (int, []byte, error) {
	if c.URL == "" {
		return 0, nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return 0, nil, fmt.Errorf("jira API token not configured")
	}

	var status int
	var respBody []byte

	op := func() error {
		status, respBody = 0, nil

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		c.setAuth(req)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "treeline/1.0")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read response: %w", err))
		}

		status = resp.StatusCode
		respBody = data

		if isTransientStatus(status) {
			return fmt.Errorf("jira returned %d", status)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(newTransientBackoff(), ctx))
	if err != nil && status == 0 {
		return 0, nil, err
	}
	// Retries exhausted on a transient status: hand the last response back
	// and let the caller decide what the status means.
	return status, respBody, nil
}

// setAuth sets the appropriate authentication header on the request.
// Cloud instances use basic auth with an API token; server instances with no
// username use a bearer token.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

// PlainTextToADF converts plain text to Jira's ADF (Atlassian Document
// Format). The v3 API rejects plain-string descriptions.
func PlainTextToADF(text string) json.RawMessage {
	if text == "" {
		return nil
	}

	paragraphs := strings.Split(text, "\n")
	var content []interface{}
	for _, para := range paragraphs {
		if para == "" {
			content = append(content, map[string]interface{}{
				"type":    "paragraph",
				"content": []interface{}{},
			})
			continue
		}
		content = append(content, map[string]interface{}{
			"type": "paragraph",
			"content": []interface{}{
				map[string]interface{}{
					"type": "text",
					"text": para,
				},
			},
		})
	}

	doc := map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": content,
	}

	data, _ := json.Marshal(doc)
	return data
}
