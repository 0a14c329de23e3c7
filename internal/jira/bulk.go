package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Payload is one validated issue-creation payload, ready for submission as a
// bulk element.
type Payload struct {
	Fields map[string]any `json:"fields"`
}

// CreatedIssue is one successfully created bulk element. Index is the
// element's position in the submitted payload list, not an original row
// index; callers remap before recording outcomes.
type CreatedIssue struct {
	Index int
	ID    string
	Key   string
	Self  string
}

// FailedIssue is one rejected bulk element, with the service's status and
// field-level detail.
type FailedIssue struct {
	Index    int
	Status   int
	Errors   map[string]string
	Messages []string
}

// BulkResult is the normalized outcome of one bulk-create call: every
// submitted element appears exactly once across Created and Failed.
type BulkResult struct {
	Created []CreatedIssue
	Failed  []FailedIssue
}

// bulkResponse is the wire shape of POST /rest/api/3/issue/bulk. Jira uses
// the same shape for full success (201, empty errors), partial success (201,
// both lists), and full failure (4xx with the lists in the error body).
type bulkResponse struct {
	Issues []struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Self string `json:"self"`
	} `json:"issues"`
	Errors []struct {
		Status        int `json:"status"`
		ElementErrors struct {
			ErrorMessages []string          `json:"errorMessages"`
			Errors        map[string]string `json:"errors"`
		} `json:"elementErrors"`
		FailedElementNumber int `json:"failedElementNumber"`
	} `json:"errors"`
}

// BulkCreate submits payloads as one multi-issue create call and normalizes
// Jira's three response shapes into a single BulkResult keyed by submission
// index. Responses without a structured bulk body (network failures, auth
// rejections, HTML error pages) propagate as opaque errors.
//
// timeout bounds the whole call including transient retries; zero means
// DefaultTimeout.
func (c *Client) BulkCreate(ctx context.Context, payloads []Payload, timeout time.Duration) (*BulkResult, error) {
	if len(payloads) == 0 {
		return &BulkResult{}, nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{"issueUpdates": payloads})
	if err != nil {
		return nil, fmt.Errorf("marshal bulk request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/bulk", c.URL)
	status, respBody, err := c.doRequest(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("bulk create: %w", err)
	}

	var resp bulkResponse
	decodeErr := json.Unmarshal(respBody, &resp)

	ok := status >= 200 && status < 300
	structured := decodeErr == nil && (len(resp.Issues) > 0 || len(resp.Errors) > 0)

	// A non-2xx answer only counts as a bulk outcome when it carries the
	// bulk shape; anything else is a transport-level failure.
	if !ok && !structured {
		return nil, fmt.Errorf("bulk create: jira returned %d: %s", status, truncate(string(respBody), 300))
	}
	if ok && decodeErr != nil {
		return nil, fmt.Errorf("bulk create: parse response: %w", decodeErr)
	}

	return normalizeBulk(len(payloads), &resp)
}

// normalizeBulk maps the wire response onto submission indices. Jira reports
// failures by element number and returns created issues in submission order
// with the failed elements skipped.
func normalizeBulk(total int, resp *bulkResponse) (*BulkResult, error) {
	failedAt := make(map[int]bool, len(resp.Errors))
	result := &BulkResult{}

	for _, e := range resp.Errors {
		n := e.FailedElementNumber
		if n < 0 || n >= total {
			return nil, fmt.Errorf("bulk create: failed element %d outside submission of %d", n, total)
		}
		if failedAt[n] {
			continue
		}
		failedAt[n] = true
		result.Failed = append(result.Failed, FailedIssue{
			Index:    n,
			Status:   e.Status,
			Errors:   e.ElementErrors.Errors,
			Messages: e.ElementErrors.ErrorMessages,
		})
	}

	created := 0
	for i := 0; i < total; i++ {
		if failedAt[i] {
			continue
		}
		if created >= len(resp.Issues) {
			return nil, fmt.Errorf("bulk create: %d issues returned for %d non-failed elements", len(resp.Issues), total-len(failedAt))
		}
		issue := resp.Issues[created]
		created++
		result.Created = append(result.Created, CreatedIssue{
			Index: i,
			ID:    issue.ID,
			Key:   issue.Key,
			Self:  issue.Self,
		})
	}
	if created != len(resp.Issues) {
		return nil, fmt.Errorf("bulk create: %d issues returned for %d non-failed elements", len(resp.Issues), total-len(failedAt))
	}

	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
