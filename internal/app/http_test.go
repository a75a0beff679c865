package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lattice/api/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			role := "editor"
			switch userID {
			case "usr_viewer":
				role = "viewer"
			case "usr_admin":
				role = "admin"
			}
			return store.User{ID: userID, DisplayName: "Tester", Role: role}, nil
		},
	}
	svc, _, _ := newTestService(t, fs)
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server, svc
}

func tokenFor(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("CreateSession(%s) failed: %v", userID, err)
	}
	return session.Token
}

func doRequest(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	resp, body := doRequest(t, http.MethodGet, server.URL+"/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestBlocksRequireSession(t *testing.T) {
	server, _ := newTestServer(t)
	resp, body := doRequest(t, http.MethodGet, server.URL+"/api/blocks", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Fatalf("body = %v", body)
	}
}

func TestViewerCannotWrite(t *testing.T) {
	server, svc := newTestServer(t)
	token := tokenFor(t, svc, "usr_viewer")

	resp, body := doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, map[string]any{
		"variant": "page",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}

	// Reads still work.
	resp, _ = doRequest(t, http.MethodGet, server.URL+"/api/blocks", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer read status = %d", resp.StatusCode)
	}
}

func TestBlockLifecycleOverHTTP(t *testing.T) {
	server, svc := newTestServer(t)
	token := tokenFor(t, svc, "usr_editor")

	// Create a page.
	resp, body := doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, map[string]any{
		"variant": "page",
		"data":    map[string]any{"title": "Inbox"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create page status = %d, body = %v", resp.StatusCode, body)
	}
	pageID, _ := body["id"].(string)
	if pageID == "" {
		t.Fatalf("missing page id in %v", body)
	}

	// Create a todo under it.
	resp, body = doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, map[string]any{
		"variant":  "todo",
		"data":     map[string]any{"content": "file taxes"},
		"parentId": pageID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create todo status = %d, body = %v", resp.StatusCode, body)
	}
	todoID, _ := body["id"].(string)

	// Update it.
	resp, body = doRequest(t, http.MethodPatch, server.URL+"/api/blocks/"+todoID, token, map[string]any{
		"data": map[string]any{"completed": true},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, body = %v", resp.StatusCode, body)
	}
	if data, ok := body["data"].(map[string]any); !ok || data["completed"] != true {
		t.Fatalf("update not applied: %v", body)
	}
	if body["version"].(float64) < 2 {
		t.Fatalf("version not bumped: %v", body["version"])
	}

	// Children listing.
	resp, body = doRequest(t, http.MethodGet, server.URL+"/api/blocks/"+pageID+"/children", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("children status = %d", resp.StatusCode)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("children count = %v", body["count"])
	}

	// Roots include the page.
	resp, body = doRequest(t, http.MethodGet, server.URL+"/api/blocks/roots", token, nil)
	if resp.StatusCode != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("roots status = %d body = %v", resp.StatusCode, body)
	}

	// Duplicate the page with its subtree.
	resp, body = doRequest(t, http.MethodPost, server.URL+"/api/blocks/"+pageID+"/duplicate", token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("duplicate status = %d, body = %v", resp.StatusCode, body)
	}
	cloneID, _ := body["id"].(string)
	if cloneID == "" || cloneID == pageID {
		t.Fatalf("bad clone id %q", cloneID)
	}

	// Delete without cascade is refused while children exist.
	resp, body = doRequest(t, http.MethodDelete, server.URL+"/api/blocks/"+pageID, token, nil)
	if resp.StatusCode != http.StatusConflict || body["code"] != "HAS_CHILDREN" {
		t.Fatalf("delete status = %d, body = %v", resp.StatusCode, body)
	}

	// Cascade delete removes the subtree.
	resp, _ = doRequest(t, http.MethodDelete, server.URL+"/api/blocks/"+pageID+"?cascade=true", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cascade delete status = %d", resp.StatusCode)
	}
	resp, body = doRequest(t, http.MethodGet, server.URL+"/api/blocks/"+pageID, token, nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "BLOCK_NOT_FOUND" {
		t.Fatalf("get deleted status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestCreateBlockErrors(t *testing.T) {
	server, svc := newTestServer(t)
	token := tokenFor(t, svc, "usr_editor")

	cases := []struct {
		name       string
		payload    map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown variant",
			payload:    map[string]any{"variant": "wormhole"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNKNOWN_VARIANT",
		},
		{
			name:       "validation failure",
			payload:    map[string]any{"variant": "heading", "data": map[string]any{"content": "x", "level": 12}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "missing parent",
			payload:    map[string]any{"variant": "text", "data": map[string]any{"content": "x"}, "parentId": "blk_ghost"},
			wantStatus: http.StatusNotFound,
			wantCode:   "PARENT_NOT_FOUND",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, tc.payload)
			if resp.StatusCode != tc.wantStatus || body["code"] != tc.wantCode {
				t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
			}
		})
	}
}

func TestMoveRejectsCycle(t *testing.T) {
	server, svc := newTestServer(t)
	token := tokenFor(t, svc, "usr_editor")

	_, parent := doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, map[string]any{
		"variant": "page", "data": map[string]any{"title": "Parent"},
	})
	parentID := parent["id"].(string)
	_, child := doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, map[string]any{
		"variant": "page", "data": map[string]any{"title": "Child"}, "parentId": parentID,
	})
	childID := child["id"].(string)

	resp, body := doRequest(t, http.MethodPost, server.URL+"/api/blocks/"+parentID+"/move", token, map[string]any{
		"newParentId": childID,
	})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "CYCLE_DETECTED" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestTreeImportRequiresAdmin(t *testing.T) {
	server, svc := newTestServer(t)
	editorToken := tokenFor(t, svc, "usr_editor")
	adminToken := tokenFor(t, svc, "usr_admin")

	// Build a tree as editor and export it.
	doRequest(t, http.MethodPost, server.URL+"/api/blocks", editorToken, map[string]any{
		"variant": "page", "data": map[string]any{"title": "Keep"},
	})
	resp, exported := doRequest(t, http.MethodGet, server.URL+"/api/tree/export", editorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}

	// Editor may not import.
	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/tree/import", editorToken, exported)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("editor import status = %d", resp.StatusCode)
	}

	// Admin round-trips it.
	resp, body := doRequest(t, http.MethodPost, server.URL+"/api/tree/import", adminToken, exported)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin import status = %d, body = %v", resp.StatusCode, body)
	}
	if body["blocks"].(float64) != 1 {
		t.Fatalf("imported blocks = %v", body["blocks"])
	}

	// Malformed snapshots are rejected atomically.
	resp, body = doRequest(t, http.MethodPost, server.URL+"/api/tree/import", adminToken, map[string]any{
		"roots": []string{"blk_a"},
		"blocks": map[string]any{
			"blk_a": map[string]any{"id": "blk_a", "variant": "text", "parentId": "blk_ghost"},
		},
	})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "MALFORMED_SNAPSHOT" {
		t.Fatalf("malformed import status = %d, body = %v", resp.StatusCode, body)
	}
	resp, body = doRequest(t, http.MethodGet, server.URL+"/api/blocks", adminToken, nil)
	if resp.StatusCode != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("tree lost after failed import: %v", body)
	}
}

func TestSearchEndpointFallsBack(t *testing.T) {
	server, svc := newTestServer(t)
	token := tokenFor(t, svc, "usr_editor")

	doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, map[string]any{
		"variant": "text", "data": map[string]any{"content": "quarterly planning notes"},
	})

	resp, body := doRequest(t, http.MethodGet, server.URL+"/api/search?q=quarterly", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	if body["source"] != "engine" {
		t.Fatalf("source = %v", body["source"])
	}
	results, ok := body["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("results = %v", body["results"])
	}
}

func TestExportEndpointHTML(t *testing.T) {
	server, svc := newTestServer(t)
	token := tokenFor(t, svc, "usr_editor")

	_, created := doRequest(t, http.MethodPost, server.URL+"/api/blocks", token, map[string]any{
		"variant": "page", "data": map[string]any{"title": "Journal"},
	})
	pageID := created["id"].(string)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/blocks/"+pageID+"/export?format=html", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Journal.html") {
		t.Fatalf("content disposition = %q", cd)
	}
}
