//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("STS_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// TestParticipantJourneyIntegration drives a running server through team
// enrollment, one full assessment and the admin export.
func TestParticipantJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	var loginResp struct {
		Token string `json:"token"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/auth/login", "", map[string]string{
		"email":    env("STS_TEST_ADMIN_EMAIL", "admin@example.org"),
		"password": env("STS_TEST_ADMIN_PASSWORD", "change-me-please"),
	}, &loginResp)
	token := loginResp.Token
	if token == "" {
		t.Fatalf("login did not return token")
	}

	var collab struct {
		ID string `json:"id"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/admin/collaboratives", token, map[string]any{
		"name":       fmt.Sprintf("Integration %d", time.Now().UnixNano()),
		"start_date": time.Now().UTC().Format(time.RFC3339),
		"end_date":   time.Now().UTC().AddDate(1, 0, 0).Format(time.RFC3339),
	}, &collab)

	var team struct {
		ID    string `json:"id"`
		Codes []struct {
			Code      string `json:"code"`
			Timepoint string `json:"timepoint"`
		} `json:"codes"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/admin/collaboratives/"+collab.ID+"/teams", token, map[string]any{
		"agency_name": "Integration Agency",
	}, &team)
	var code string
	for _, c := range team.Codes {
		if c.Timepoint == "baseline" {
			code = c.Code
		}
	}
	if code == "" {
		t.Fatalf("no baseline code issued: %+v", team)
	}

	var progress struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Complete bool `json:"complete"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/sessions", "", map[string]string{"code": code}, &progress)
	sessionID := progress.Session.ID

	doJSON(t, client, http.MethodPost, base+"/api/sessions/"+sessionID+"/demographics", "", map[string]any{
		"gender":                  "prefer_not_answer",
		"age":                     41,
		"years_in_service":        12,
		"job_role":                "Case Manager",
		"areas_of_responsibility": []string{"Crisis Response Services"},
		"exposure_level":          45,
	}, nil)
	for _, step := range []string{"stss", "proqol", "stsioa"} {
		var catalog struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		doJSON(t, client, http.MethodGet, base+"/api/instruments/"+step, "", nil, &catalog)
		answers := map[string]int{}
		for _, it := range catalog.Items {
			answers[it.ID] = 2
		}
		doJSON(t, client, http.MethodPost, base+"/api/sessions/"+sessionID+"/"+step, "", map[string]any{"responses": answers}, &progress)
	}
	if !progress.Complete {
		t.Fatalf("session %s not complete after the last step", sessionID)
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/admin/export?collaborative_id=%s&timepoint=baseline", base, collab.ID), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	defer resp.Body.Close()
	csvData, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read export data: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status %d body %s", resp.StatusCode, string(csvData))
	}
	if !strings.Contains(string(csvData), sessionID) {
		t.Fatalf("export csv did not contain session id; csv=%s", csvData)
	}
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, out any) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}
