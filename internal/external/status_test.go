package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"careervision/internal/types"
)

func newTestStatusClient(t *testing.T, handler http.HandlerFunc) *StatusClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStatusClient(srv.Client(), srv.URL, "status-key-123",
		WithSleepFunc(func(time.Duration) {}))
}

func TestFetchStatus_ActiveSubscription(t *testing.T) {
	client := newTestStatusClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer status-key-123" {
			t.Errorf("Authorization = %q", got)
		}

		var req struct {
			CustomerID string `json:"customerId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.CustomerID != "user-42" {
			t.Errorf("customerId = %q, want user-42", req.CustomerID)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":{"isActive":true,"plan":"yearly","currentPeriodEnd":"2027-03-01T10:00:00Z"}}`))
	})

	status, err := client.FetchStatus(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("FetchStatus returned error: %v", err)
	}

	if !status.IsActive {
		t.Error("status should be active")
	}
	if status.Plan != types.PlanYearly {
		t.Errorf("plan = %q, want yearly", status.Plan)
	}
	want := time.Date(2027, 3, 1, 10, 0, 0, 0, time.UTC)
	if status.CurrentPeriodEnd == nil || !status.CurrentPeriodEnd.Equal(want) {
		t.Errorf("currentPeriodEnd = %v, want %v", status.CurrentPeriodEnd, want)
	}
}

func TestFetchStatus_StalePeriodEndStaysActive(t *testing.T) {
	client := newTestStatusClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":{"isActive":true,"plan":"monthly","currentPeriodEnd":"2020-01-01T00:00:00Z"}}`))
	})

	status, err := client.FetchStatus(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("FetchStatus returned error: %v", err)
	}

	// The remote isActive flag is authoritative; a period end in the past
	// is reported verbatim, never used to recompute activity.
	if !status.IsActive {
		t.Error("isActive must be reflected verbatim regardless of currentPeriodEnd")
	}
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if status.CurrentPeriodEnd == nil || !status.CurrentPeriodEnd.Equal(want) {
		t.Errorf("currentPeriodEnd = %v, want %v", status.CurrentPeriodEnd, want)
	}
}

func TestFetchStatus_NoSubscription(t *testing.T) {
	client := newTestStatusClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	status, err := client.FetchStatus(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("FetchStatus returned error: %v", err)
	}
	if status.IsActive {
		t.Error("empty response means no subscription")
	}
	if status.Plan != types.PlanNone {
		t.Errorf("plan = %q, want none", status.Plan)
	}
}

func TestFetchStatus_UnknownPlanNormalized(t *testing.T) {
	client := newTestStatusClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":{"isActive":false,"plan":"platinum"}}`))
	})

	status, err := client.FetchStatus(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("FetchStatus returned error: %v", err)
	}
	if status.Plan != types.PlanNone {
		t.Errorf("unknown plan should normalize to none, got %q", status.Plan)
	}
}

func TestFetchStatus_ServerErrorReturnsInactiveAndError(t *testing.T) {
	client := newTestStatusClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	status, err := client.FetchStatus(context.Background(), "user-42")
	if err == nil {
		t.Fatal("server errors should surface as an error")
	}
	if status.IsActive {
		t.Error("failure path must return the inactive default")
	}
}

func TestFetchStatus_GarbageBodyReturnsError(t *testing.T) {
	client := newTestStatusClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})

	status, err := client.FetchStatus(context.Background(), "user-42")
	if err == nil {
		t.Fatal("undecodable bodies should surface as an error")
	}
	if status.IsActive {
		t.Error("failure path must return the inactive default")
	}
}
