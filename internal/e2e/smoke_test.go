//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("EMBERVALE_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3210"
	}

	// Wait for server readiness (up to 30s)
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Fprintf(os.Stderr, "server at %s not ready after 30s\n", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// getJSON fetches a path and decodes the response, failing the test on any error.
func getJSON(t *testing.T, path string, out interface{}) {
	t.Helper()

	resp, err := http.Get(baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d: %s", path, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal %s response: %v (body: %s)", path, err, string(raw))
	}
}

// postJSON posts to a control path and decodes the response.
func postJSON(t *testing.T, path string, out interface{}) {
	t.Helper()

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(baseURL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s: status %d: %s", path, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal %s response: %v (body: %s)", path, err, string(raw))
	}
}

type worldStatus struct {
	Running    bool   `json:"running"`
	TimeOfDay  string `json:"time_of_day"`
	Population int    `json:"population"`
	World      struct {
		Tick int `json:"tick"`
		Day  int `json:"day"`
	} `json:"world"`
}

func TestHealth(t *testing.T) {
	var health struct {
		Status string `json:"status"`
		World  string `json:"world"`
	}
	getJSON(t, "/api/health", &health)
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.World != "embervale" {
		t.Errorf("world = %q, want embervale", health.World)
	}
}

func TestWorldStatus(t *testing.T) {
	var status worldStatus
	getJSON(t, "/api/world", &status)
	if status.Population <= 0 {
		t.Errorf("population = %d, want a living village", status.Population)
	}
	if status.TimeOfDay == "" {
		t.Error("time_of_day is empty")
	}
	t.Logf("day %d, tick %d, population %d", status.World.Day, status.World.Tick, status.Population)
}

func TestRoster(t *testing.T) {
	var villagers []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Location string `json:"location"`
		Alive    bool   `json:"alive"`
	}
	getJSON(t, "/api/agents", &villagers)
	if len(villagers) == 0 {
		t.Fatal("expected at least one villager")
	}
	for _, v := range villagers {
		if v.Name == "" || v.ID == "" {
			t.Errorf("villager missing identity: %+v", v)
		}
		if !v.Alive {
			t.Errorf("roster lists dead villager %s", v.Name)
		}
	}

	// Detail lookup must work for a listed villager.
	var detail struct {
		Name string `json:"name"`
	}
	getJSON(t, "/api/agents/"+villagers[0].ID, &detail)
	if detail.Name != villagers[0].Name {
		t.Errorf("detail name = %q, want %q", detail.Name, villagers[0].Name)
	}
}

func TestFeed(t *testing.T) {
	var events []struct {
		Type string `json:"type"`
		Tick int    `json:"tick"`
	}
	getJSON(t, "/api/feed/recent?limit=20", &events)
	// A fresh world may not have ticked yet; events are optional here, shape is not.
	t.Logf("%d recent events", len(events))
}

func TestSimControl(t *testing.T) {
	var status worldStatus
	postJSON(t, "/api/sim/stop", &status)
	if status.Running {
		t.Error("still running after stop")
	}
	postJSON(t, "/api/sim/start", &status)
	if !status.Running {
		t.Error("not running after start")
	}
}
