package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"careervision/internal/core"
	"careervision/internal/types"
)

// mockUnlockStore implements UnlockStore for testing.
type mockUnlockStore struct {
	unlocked  bool
	expiresAt time.Time
	code      string
}

func (m *mockUnlockStore) UnlockWithCode(code string) error {
	if code != m.code {
		return types.NewAppError(types.ErrCodeUnlockCodeInvalid, "invalid unlock code", nil)
	}
	m.unlocked = true
	m.expiresAt = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return nil
}

func (m *mockUnlockStore) Unlocked() bool { return m.unlocked }

func (m *mockUnlockStore) ExpiresAt() (time.Time, bool) {
	return m.expiresAt, m.unlocked
}

var _ UnlockStore = (*mockUnlockStore)(nil)

func newTestUnlockHandler(store UnlockStore) *UnlockHandler {
	return NewUnlockHandler(store, core.NewValidator(nil), nil)
}

func TestSubmitCode_Correct(t *testing.T) {
	store := &mockUnlockStore{code: "4E21"}
	h := newTestUnlockHandler(store)

	req := makeRequest("POST", "/v1/unlock",
		UnlockRequest{Code: "4E21"},
		contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()

	h.SubmitCode(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data UnlockResponse `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)
	if !resp.Data.Unlocked {
		t.Error("unlocked = false, want true")
	}
	if resp.Data.ExpiresAt == nil {
		t.Error("expiresAt missing for a live grant")
	}
}

func TestSubmitCode_Wrong(t *testing.T) {
	store := &mockUnlockStore{code: "4E21"}
	h := newTestUnlockHandler(store)

	req := makeRequest("POST", "/v1/unlock",
		UnlockRequest{Code: "0000"},
		contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()

	h.SubmitCode(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
	if code := errorCode(t, rr); code != "unlock_code_invalid" {
		t.Errorf("code = %q, want unlock_code_invalid", code)
	}
	if store.unlocked {
		t.Error("a rejected code must not change unlock state")
	}
}

func TestSubmitCode_MissingBody(t *testing.T) {
	h := newTestUnlockHandler(&mockUnlockStore{code: "4E21"})

	req := makeRequest("POST", "/v1/unlock",
		map[string]string{}, contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()

	h.SubmitCode(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestGetState_Locked(t *testing.T) {
	h := newTestUnlockHandler(&mockUnlockStore{})

	req := makeRequest("GET", "/v1/unlock", nil, contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()

	h.GetState(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Data UnlockResponse `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)
	if resp.Data.Unlocked {
		t.Error("unlocked = true, want false")
	}
	if resp.Data.ExpiresAt != nil {
		t.Error("expiresAt must be omitted while locked")
	}
}
