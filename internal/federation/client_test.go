package federation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/halcyongrid/logind/internal/domain"
)

func gatekeeperFor(t *testing.T, srv *httptest.Server) *domain.Gatekeeper {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	return &domain.Gatekeeper{Host: u.Hostname(), Port: port, RegionName: "Oasis"}
}

func TestLinkRegionSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grid/link_region" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			RegionName string `json:"region_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RegionName != "Oasis" {
			t.Errorf("link request body = %+v, err %v", req, err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": true, "uuid": "r-oasis", "handle": uint64(42), "region_image": "img-1",
		})
	}))
	defer srv.Close()

	c := NewClient(0)
	link, err := c.LinkRegion(context.Background(), gatekeeperFor(t, srv))
	if err != nil {
		t.Fatalf("LinkRegion returned error: %v", err)
	}
	if link.RegionID != "r-oasis" || link.Handle != 42 || link.ImageRef != "img-1" {
		t.Errorf("link = %+v, want r-oasis/42/img-1", link)
	}
}

func TestLinkRegionRefusalSurfacesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": false, "reason": "grid is closed for maintenance"})
	}))
	defer srv.Close()

	c := NewClient(0)
	_, err := c.LinkRegion(context.Background(), gatekeeperFor(t, srv))
	if err == nil || err.Error() != "grid is closed for maintenance" {
		t.Fatalf("error = %v, want verbatim remote reason", err)
	}
}

func TestHyperlinkRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/grid/region/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": true,
			"region": map[string]any{
				"region_id": "r-oasis", "name": "Oasis",
				"host_name": "sim.remote.example", "port": 9100, "safe": true,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(0)
	region, err := c.HyperlinkRegion(context.Background(), gatekeeperFor(t, srv), "r-oasis")
	if err != nil {
		t.Fatalf("HyperlinkRegion returned error: %v", err)
	}
	if region.ID != "r-oasis" || region.Name != "Oasis" || region.Port != 9100 {
		t.Errorf("region = %+v, want Oasis descriptor", region)
	}
}

func TestLoginAgentToGridRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "reason": "region full"})
	}))
	defer srv.Close()

	gk := gatekeeperFor(t, srv)
	circuit := &domain.AgentCircuit{SessionID: "s1", UserID: "u1", CircuitCode: 7}
	dest := &domain.RegionDescriptor{ID: "r-oasis", Name: "Oasis"}

	c := NewClient(0)
	err := c.LoginAgentToGrid(context.Background(), circuit, gk, dest, "203.0.113.9")
	if err == nil || err.Error() != "region full" {
		t.Fatalf("error = %v, want verbatim refusal reason", err)
	}
}

func TestLoginAgentToGridSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	gk := gatekeeperFor(t, srv)
	circuit := &domain.AgentCircuit{SessionID: "s1", UserID: "u1", CircuitCode: 7}
	dest := &domain.RegionDescriptor{ID: "r-oasis", Name: "Oasis"}

	c := NewClient(0)
	if err := c.LoginAgentToGrid(context.Background(), circuit, gk, dest, "203.0.113.9"); err != nil {
		t.Fatalf("LoginAgentToGrid returned error: %v", err)
	}
	if gotPath != "/grid/agent/s1" {
		t.Errorf("path = %q, want /grid/agent/s1", gotPath)
	}
}
