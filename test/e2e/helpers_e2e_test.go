//go:build e2e

// Package e2e_test drives a running bucketscan stack over HTTP. It needs
// the API, a worker, Postgres, the queue and a seeded bucket (see
// cmd/seedbucket); point BASE_URL at the API if it is not on localhost.
package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// baseURL is where the API listens, without a trailing slash.
var baseURL = getenv("BASE_URL", "http://localhost:8080")

// getenv returns the value of the environment variable k or def if empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// waitForAppReady polls /healthz until the app answers or the deadline
// passes. An unreachable stack skips the test instead of failing it, so
// the suite is safe to run in environments without the stack up.
func waitForAppReady(t *testing.T, client *http.Client, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		resp, err := client.Get(baseURL + "/healthz")
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if err == nil && resp.StatusCode == http.StatusOK {
			return
		}
		if time.Now().After(deadline) {
			t.Skipf("app not reachable at %s; skipping", baseURL)
		}
		time.Sleep(time.Second)
	}
}

// doJSON performs one request and decodes the JSON response body, if any,
// into a generic map. A 204 yields a nil map.
func doJSON(t *testing.T, client *http.Client, method, path string, body any, hdr http.Header) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL+path, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s %s response: %v", method, path, err)
	}
	if len(raw) == 0 {
		return resp.StatusCode, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
	}
	return resp.StatusCode, m
}

func postJSON(t *testing.T, client *http.Client, path string, body any) (int, map[string]any) {
	t.Helper()
	return doJSON(t, client, http.MethodPost, path, body, nil)
}

func getJSON(t *testing.T, client *http.Client, path string) (int, map[string]any) {
	t.Helper()
	return doJSON(t, client, http.MethodGet, path, nil, nil)
}

// startScan creates a scan job and returns the receipt payload.
func startScan(t *testing.T, client *http.Client, bucket, prefix string) map[string]any {
	t.Helper()
	req := map[string]any{"bucket": bucket}
	if prefix != "" {
		req["prefix"] = prefix
	}
	st, resp := postJSON(t, client, "/v1/scans", req)
	if st != http.StatusOK {
		t.Fatalf("start scan: status %d, body %#v", st, resp)
	}
	return resp
}

// waitForJobCompleted polls the job until its derived status is completed
// or the deadline passes, and returns the last payload seen either way.
func waitForJobCompleted(t *testing.T, client *http.Client, jobID string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last map[string]any
	for {
		st, resp := getJSON(t, client, "/v1/jobs/"+jobID)
		if st != http.StatusOK {
			t.Fatalf("get job %s: status %d, body %#v", jobID, st, resp)
		}
		last = resp
		if s, _ := resp["status"].(string); s == "completed" {
			return resp
		}
		if time.Now().After(deadline) {
			return last
		}
		time.Sleep(2 * time.Second)
	}
}

// errorCode digs the code out of an error envelope.
func errorCode(resp map[string]any) string {
	e, _ := resp["error"].(map[string]any)
	c, _ := e["code"].(string)
	return c
}
