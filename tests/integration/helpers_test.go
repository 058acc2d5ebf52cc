//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"os"
	"testing"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

type sessionView struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
	Dataset   string `json:"dataset"`
	PoolSize  int    `json:"pool_size"`
	Question  *struct {
		Prompt  string `json:"prompt"`
		Choices []struct {
			Label string `json:"label"`
			Text  string `json:"text"`
		} `json:"choices"`
	} `json:"question"`
	Summary *struct {
		Score    int `json:"score"`
		Answered int `json:"answered"`
	} `json:"summary"`
	CanExport bool `json:"can_export"`
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func postView(t *testing.T, c *http.Client, url string, payload any, wantStatus int) sessionView {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := c.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("POST %s: expected %d, got %d, error: %v", url, wantStatus, resp.StatusCode, errResp)
	}

	var v sessionView
	if wantStatus == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			t.Fatalf("decode view: %v", err)
		}
	}
	return v
}
