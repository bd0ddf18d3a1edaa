package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestLedgerOverview_200(t *testing.T) {
	f := setupRouter(t, now)

	w := f.do(t, http.MethodGet, "/api/v1/ledger", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if int(resp["height"].(float64)) != 0 { // genesis
		t.Errorf("expected height 0, got %v", resp["height"])
	}
	if resp["tip"] == "" {
		t.Error("expected non-empty tip hash")
	}
}

func TestLedgerVerify_200(t *testing.T) {
	f := setupRouter(t, now)

	w := f.do(t, http.MethodGet, "/api/v1/ledger/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true {
		t.Errorf("expected valid=true, got %v", resp["valid"])
	}
}

func TestHealthz(t *testing.T) {
	f := setupRouter(t, now)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
