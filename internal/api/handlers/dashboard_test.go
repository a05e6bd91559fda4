package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"careervision/internal/gate"
	"careervision/internal/types"
)

type mockStatusSource struct {
	status types.SubscriptionStatus
}

func (m *mockStatusSource) StatusFor(ctx context.Context, identity *types.Identity) types.SubscriptionStatus {
	return m.status
}

var _ StatusSource = (*mockStatusSource)(nil)

func newDashboardRouter(unlock *mockUnlockStore, status *mockStatusSource) chi.Router {
	g := gate.NewGate(unlock, status, "https://app.careervision.io/login")
	h := NewDashboardHandler(g, unlock, status, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestGetAccess_EntitledByUnlock(t *testing.T) {
	unlock := &mockUnlockStore{unlocked: true, expiresAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)}
	router := newDashboardRouter(unlock, &mockStatusSource{status: types.InactiveStatus()})

	req := makeRequest("GET", "/dashboard", nil, contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data AccessSnapshot `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)
	if !resp.Data.Unlocked {
		t.Error("unlocked = false, want true")
	}
	if resp.Data.UserID != "u1" {
		t.Errorf("userId = %q", resp.Data.UserID)
	}
}

func TestGetAccess_AnonymousRedirected(t *testing.T) {
	router := newDashboardRouter(&mockUnlockStore{unlocked: true}, &mockStatusSource{})

	req := makeRequest("GET", "/dashboard", nil, contextWithUser(nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if code := errorCode(t, rr); code != "auth_required" {
		t.Errorf("code = %q, want auth_required", code)
	}
}

func TestGetAccess_NoEntitlementPrompted(t *testing.T) {
	router := newDashboardRouter(&mockUnlockStore{}, &mockStatusSource{status: types.InactiveStatus()})

	req := makeRequest("GET", "/dashboard", nil, contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
	if code := errorCode(t, rr); code != "entitlement_required" {
		t.Errorf("code = %q, want entitlement_required", code)
	}
}

func TestGetAccess_InsightsRequiresSubscription(t *testing.T) {
	// An unlock grant opens /dashboard but not /insights.
	unlock := &mockUnlockStore{unlocked: true}
	router := newDashboardRouter(unlock, &mockStatusSource{status: types.InactiveStatus()})

	req := makeRequest("GET", "/insights", nil, contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestGetAccess_InsightsForSubscriber(t *testing.T) {
	periodEnd := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	status := &mockStatusSource{status: types.SubscriptionStatus{
		IsActive:         true,
		Plan:             types.PlanYearly,
		CurrentPeriodEnd: &periodEnd,
	}}
	router := newDashboardRouter(&mockUnlockStore{}, status)

	req := makeRequest("GET", "/insights", nil, contextWithUser(&types.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data AccessSnapshot `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)
	if resp.Data.Plan != types.PlanYearly {
		t.Errorf("plan = %q, want yearly", resp.Data.Plan)
	}
	if resp.Data.SubscriptionEnds == nil || !resp.Data.SubscriptionEnds.Equal(periodEnd) {
		t.Errorf("subscriptionEnds = %v", resp.Data.SubscriptionEnds)
	}
}
