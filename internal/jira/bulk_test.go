package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func bulkServer(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/bulk" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			IssueUpdates []Payload `json:"issueUpdates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode bulk request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "user@example.com", "token")
}

func payloads(n int) []Payload {
	out := make([]Payload, n)
	for i := range out {
		out[i] = Payload{Fields: map[string]any{"summary": fmt.Sprintf("issue %d", i)}}
	}
	return out
}

func TestBulkCreateAllSucceed(t *testing.T) {
	client := bulkServer(t, http.StatusCreated, `{
		"issues": [
			{"id":"10001","key":"PROJ-1","self":"https://x/rest/api/3/issue/10001"},
			{"id":"10002","key":"PROJ-2","self":"https://x/rest/api/3/issue/10002"}
		],
		"errors": []
	}`)

	result, err := client.BulkCreate(context.Background(), payloads(2), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 2 || len(result.Failed) != 0 {
		t.Fatalf("created=%d failed=%d, want 2/0", len(result.Created), len(result.Failed))
	}
	for i, c := range result.Created {
		if c.Index != i {
			t.Errorf("created[%d].Index = %d", i, c.Index)
		}
	}
	if result.Created[1].Key != "PROJ-2" {
		t.Errorf("created[1].Key = %q", result.Created[1].Key)
	}
}

func TestBulkCreatePartialFailure(t *testing.T) {
	// Element 1 of 3 rejected; issues list holds the two survivors in order.
	client := bulkServer(t, http.StatusCreated, `{
		"issues": [
			{"id":"10001","key":"PROJ-1"},
			{"id":"10003","key":"PROJ-3"}
		],
		"errors": [{
			"status": 400,
			"elementErrors": {
				"errorMessages": ["issue type is required"],
				"errors": {"issuetype": "Specify an issue type"}
			},
			"failedElementNumber": 1
		}]
	}`)

	result, err := client.BulkCreate(context.Background(), payloads(3), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 2 || len(result.Failed) != 1 {
		t.Fatalf("created=%d failed=%d, want 2/1", len(result.Created), len(result.Failed))
	}
	// Submission indices 0 and 2 map onto the returned issues in order.
	if result.Created[0].Index != 0 || result.Created[0].Key != "PROJ-1" {
		t.Errorf("created[0] = %+v", result.Created[0])
	}
	if result.Created[1].Index != 2 || result.Created[1].Key != "PROJ-3" {
		t.Errorf("created[1] = %+v", result.Created[1])
	}
	f := result.Failed[0]
	if f.Index != 1 || f.Status != 400 || f.Errors["issuetype"] == "" || len(f.Messages) != 1 {
		t.Errorf("failed[0] = %+v", f)
	}
}

func TestBulkCreateFullFailureBody(t *testing.T) {
	// A 400 carrying the bulk shape is a structured outcome, not an error.
	client := bulkServer(t, http.StatusBadRequest, `{
		"issues": [],
		"errors": [
			{"status":400,"elementErrors":{"errors":{"summary":"required"}},"failedElementNumber":0},
			{"status":400,"elementErrors":{"errors":{"summary":"required"}},"failedElementNumber":1}
		]
	}`)

	result, err := client.BulkCreate(context.Background(), payloads(2), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 0 || len(result.Failed) != 2 {
		t.Fatalf("created=%d failed=%d, want 0/2", len(result.Created), len(result.Failed))
	}
}

func TestBulkCreateTransportError(t *testing.T) {
	client := bulkServer(t, http.StatusUnauthorized, `{"message":"auth required"}`)

	_, err := client.BulkCreate(context.Background(), payloads(1), 0)
	if err == nil {
		t.Fatal("expected opaque error for unstructured 401")
	}
}

func TestBulkCreateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "u", "tok")

	start := time.Now()
	_, err := client.BulkCreate(context.Background(), payloads(1), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout not honored, took %v", time.Since(start))
	}
}

func TestBulkCreateEmpty(t *testing.T) {
	client := NewClient("https://example.atlassian.net", "u", "tok")
	result, err := client.BulkCreate(context.Background(), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created)+len(result.Failed) != 0 {
		t.Errorf("empty submission produced results: %+v", result)
	}
}

func TestNormalizeBulkMismatch(t *testing.T) {
	// More issues than non-failed elements is an invariant violation and
	// must fail loudly rather than mis-attribute keys.
	var resp bulkResponse
	if err := json.Unmarshal([]byte(`{
		"issues":[{"key":"PROJ-1"},{"key":"PROJ-2"}],
		"errors":[{"status":400,"failedElementNumber":0}]
	}`), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := normalizeBulk(2, &resp); err == nil {
		t.Fatal("expected mismatch error")
	}

	var resp2 bulkResponse
	if err := json.Unmarshal([]byte(`{
		"issues":[],
		"errors":[{"status":400,"failedElementNumber":9}]
	}`), &resp2); err != nil {
		t.Fatal(err)
	}
	if _, err := normalizeBulk(2, &resp2); err == nil {
		t.Fatal("expected out-of-range element error")
	}
}

func TestBulkCreateRetriesTransient(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"issues":[{"id":"1","key":"PROJ-1"}],"errors":[]}`)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "u", "tok")

	result, err := client.BulkCreate(context.Background(), payloads(1), 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if attempts < 2 {
		t.Errorf("attempts = %d, want retry after 429", attempts)
	}
	if len(result.Created) != 1 || result.Created[0].Key != "PROJ-1" {
		t.Errorf("result = %+v", result)
	}
}
