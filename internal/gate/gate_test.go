package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"careervision/internal/types"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Decision
	}{
		{"no identity", Input{}, DecisionRedirectToLogin},
		{"no identity ignores unlock", Input{Unlocked: true, SubscriptionActive: true}, DecisionRedirectToLogin},
		{"identity without entitlement", Input{HasIdentity: true}, DecisionPromptUnlock},
		{"unlock grant allows", Input{HasIdentity: true, Unlocked: true}, DecisionAllow},
		{"active subscription allows", Input{HasIdentity: true, SubscriptionActive: true}, DecisionAllow},
		{"both allow", Input{HasIdentity: true, Unlocked: true, SubscriptionActive: true}, DecisionAllow},
		{"subscriber-only rejects unlock grant", Input{HasIdentity: true, Unlocked: true, RequiresSubscription: true}, DecisionPromptUnlock},
		{"subscriber-only accepts subscription", Input{HasIdentity: true, SubscriptionActive: true, RequiresSubscription: true}, DecisionAllow},
		{"subscriber-only without identity redirects", Input{SubscriptionActive: true, RequiresSubscription: true}, DecisionRedirectToLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.in); got != tt.want {
				t.Errorf("Evaluate(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

type fakeUnlock struct {
	unlocked bool
}

func (f *fakeUnlock) Unlocked() bool { return f.unlocked }

type fakeStatusSource struct {
	status types.SubscriptionStatus
	called bool
}

func (f *fakeStatusSource) StatusFor(ctx context.Context, identity *types.Identity) types.SubscriptionStatus {
	f.called = true
	return f.status
}

func newGateRequest(t *testing.T, target string, identity *types.Identity) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := types.WithRequestID(r.Context(), "req-test")
	if identity != nil {
		ctx = types.WithIdentity(ctx, *identity)
	}
	return r.WithContext(ctx)
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) (code string, details map[string]any) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Code, body.Error.Details
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestGate_ProtectAllows(t *testing.T) {
	g := NewGate(&fakeUnlock{unlocked: true}, &fakeStatusSource{}, "https://app.example.com/login")

	var hit bool
	rec := httptest.NewRecorder()
	g.Protect(okHandler(&hit)).ServeHTTP(rec, newGateRequest(t, "/v1/dashboard", &types.Identity{UserID: "u1"}))

	if !hit {
		t.Fatal("handler should have been reached")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGate_RedirectsWithoutIdentity(t *testing.T) {
	unlock := &fakeUnlock{unlocked: true}
	status := &fakeStatusSource{}
	g := NewGate(unlock, status, "https://app.example.com/login")

	var hit bool
	rec := httptest.NewRecorder()
	g.Protect(okHandler(&hit)).ServeHTTP(rec, newGateRequest(t, "/v1/dashboard?tab=skills", nil))

	if hit {
		t.Fatal("handler must not run for an unauthenticated caller")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	code, details := decodeErrorBody(t, rec)
	if code != "auth_required" {
		t.Errorf("code = %q, want auth_required", code)
	}
	want := "https://app.example.com/login?next=%2Fv1%2Fdashboard%3Ftab%3Dskills"
	if details["redirectTo"] != want {
		t.Errorf("redirectTo = %q, want %q", details["redirectTo"], want)
	}
	if status.called {
		t.Error("status must not be consulted for an unauthenticated caller")
	}
}

func TestGate_PromptsWithoutEntitlement(t *testing.T) {
	g := NewGate(&fakeUnlock{}, &fakeStatusSource{status: types.InactiveStatus()}, "https://app.example.com/login")

	var hit bool
	rec := httptest.NewRecorder()
	g.Protect(okHandler(&hit)).ServeHTTP(rec, newGateRequest(t, "/v1/dashboard", &types.Identity{UserID: "u1"}))

	if hit {
		t.Fatal("handler must not run without an entitlement")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	code, details := decodeErrorBody(t, rec)
	if code != "entitlement_required" {
		t.Errorf("code = %q, want entitlement_required", code)
	}
	if details["dismissible"] != false {
		t.Error("the unlock prompt must be marked non-dismissible")
	}
}

func TestGate_SubscriberOnlyIgnoresUnlockGrant(t *testing.T) {
	g := NewGate(&fakeUnlock{unlocked: true}, &fakeStatusSource{status: types.InactiveStatus()}, "https://app.example.com/login")

	var hit bool
	rec := httptest.NewRecorder()
	g.ProtectSubscriberOnly(okHandler(&hit)).ServeHTTP(rec, newGateRequest(t, "/v1/reports", &types.Identity{UserID: "u1"}))

	if hit {
		t.Fatal("an unlock grant must not satisfy a subscriber-only route")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestGate_SubscriberOnlyAllowsActiveSubscription(t *testing.T) {
	status := &fakeStatusSource{status: types.SubscriptionStatus{IsActive: true, Plan: types.PlanMonthly}}
	g := NewGate(&fakeUnlock{}, status, "https://app.example.com/login")

	var hit bool
	rec := httptest.NewRecorder()
	g.ProtectSubscriberOnly(okHandler(&hit)).ServeHTTP(rec, newGateRequest(t, "/v1/reports", &types.Identity{UserID: "u1"}))

	if !hit {
		t.Fatal("an active subscription should satisfy a subscriber-only route")
	}
}

func TestGate_LoginURLWithExistingQuery(t *testing.T) {
	g := NewGate(&fakeUnlock{}, &fakeStatusSource{}, "https://app.example.com/login?src=gate")

	rec := httptest.NewRecorder()
	g.Protect(okHandler(new(bool))).ServeHTTP(rec, newGateRequest(t, "/v1/dashboard", nil))

	_, details := decodeErrorBody(t, rec)
	want := "https://app.example.com/login?src=gate&next=%2Fv1%2Fdashboard"
	if details["redirectTo"] != want {
		t.Errorf("redirectTo = %q, want %q", details["redirectTo"], want)
	}
}
