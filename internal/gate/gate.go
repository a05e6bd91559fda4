// Package gate decides whether a request may reach a protected route.
//
// The decision is a pure function over the caller's identity, the unlock
// grant, and the subscription status. It is total: every combination of
// inputs maps to exactly one of three outcomes, and evaluation never
// performs network or storage I/O.
package gate

import (
	"context"
	"net/http"
	"net/url"

	"careervision/internal/core"
	"careervision/internal/types"
)

// Decision is the outcome of evaluating a request against a protected route.
type Decision int

const (
	// DecisionAllow lets the request through to the route handler.
	DecisionAllow Decision = iota
	// DecisionRedirectToLogin sends an unauthenticated caller to the login
	// page, preserving the originally requested location.
	DecisionRedirectToLogin
	// DecisionPromptUnlock blocks the request behind the unlock prompt. The
	// prompt is not dismissible: there is no way past it other than
	// satisfying the entitlement.
	DecisionPromptUnlock
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirectToLogin:
		return "redirect_to_login"
	case DecisionPromptUnlock:
		return "prompt_unlock"
	default:
		return "unknown"
	}
}

// Input carries everything Evaluate needs. Callers resolve these from
// request context and local state before evaluating; Evaluate itself
// touches nothing else.
type Input struct {
	HasIdentity          bool
	Unlocked             bool
	SubscriptionActive   bool
	RequiresSubscription bool
}

// Evaluate maps an input to its single outcome.
//
// Identity is checked first: without it the caller is redirected to login
// regardless of any unlock or subscription state. With an identity, the
// default entitlement is the unlock grant; routes flagged as requiring a
// subscription accept only an active subscription and ignore the unlock
// grant entirely.
func Evaluate(in Input) Decision {
	if !in.HasIdentity {
		return DecisionRedirectToLogin
	}
	if in.RequiresSubscription {
		if in.SubscriptionActive {
			return DecisionAllow
		}
		return DecisionPromptUnlock
	}
	if in.Unlocked || in.SubscriptionActive {
		return DecisionAllow
	}
	return DecisionPromptUnlock
}

// UnlockChecker reports whether the time-boxed unlock grant is live.
type UnlockChecker interface {
	Unlocked() bool
}

// StatusSource resolves the subscription status for a request identity.
type StatusSource interface {
	StatusFor(ctx context.Context, identity *types.Identity) types.SubscriptionStatus
}

// Gate wires the decision function to its live inputs and renders the
// outcome over HTTP.
type Gate struct {
	unlock   UnlockChecker
	status   StatusSource
	loginURL string
}

// NewGate builds a Gate. loginURL is the absolute login page URL; the
// originally requested location is appended as its "next" query parameter.
func NewGate(unlock UnlockChecker, status StatusSource, loginURL string) *Gate {
	return &Gate{
		unlock:   unlock,
		status:   status,
		loginURL: loginURL,
	}
}

// Protect guards a route with the default entitlement: an unlock grant or
// an active subscription.
func (g *Gate) Protect(next http.Handler) http.Handler {
	return g.middleware(next, false)
}

// ProtectSubscriberOnly guards a route that accepts only an active
// subscription. The unlock grant does not satisfy it.
func (g *Gate) ProtectSubscriberOnly(next http.Handler) http.Handler {
	return g.middleware(next, true)
}

func (g *Gate) middleware(next http.Handler, requiresSubscription bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := types.GetIdentity(r.Context())

		in := Input{
			HasIdentity:          ok,
			RequiresSubscription: requiresSubscription,
		}
		if ok {
			in.Unlocked = g.unlock.Unlocked()
			in.SubscriptionActive = g.status.StatusFor(r.Context(), &identity).IsActive
		}

		switch Evaluate(in) {
		case DecisionAllow:
			next.ServeHTTP(w, r)
		case DecisionRedirectToLogin:
			g.renderRedirect(w, r)
		case DecisionPromptUnlock:
			g.renderPrompt(w, r)
		}
	})
}

// renderRedirect answers 401 with the login URL carrying the original
// location, so the client can return the caller there after sign-in.
func (g *Gate) renderRedirect(w http.ResponseWriter, r *http.Request) {
	target := g.loginURL
	if next := originalLocation(r); next != "" {
		sep := "?"
		if u, err := url.Parse(g.loginURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		target = g.loginURL + sep + "next=" + url.QueryEscape(next)
	}
	core.Error(w, r, types.NewAppErrorWithDetails(
		types.ErrCodeAuthRequired,
		"Sign in to continue",
		nil,
		map[string]any{"redirectTo": target},
	))
}

// renderPrompt answers 403 with the unlock prompt. dismissible is always
// false: the client must not offer a way to close the prompt.
func (g *Gate) renderPrompt(w http.ResponseWriter, r *http.Request) {
	core.Error(w, r, types.NewAppErrorWithDetails(
		types.ErrCodeEntitlementRequired,
		"This area requires an unlock code or an active subscription",
		nil,
		map[string]any{
			"prompt":      "unlock",
			"dismissible": false,
		},
	))
}

func originalLocation(r *http.Request) string {
	loc := r.URL.Path
	if r.URL.RawQuery != "" {
		loc += "?" + r.URL.RawQuery
	}
	return loc
}
