package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"careervision/internal/types"
)

// StatusClient queries the billing-status endpoint for a customer's current
// subscription. The endpoint accepts POST {"customerId": ...} and returns
// either a subscription object or an empty body meaning "no subscription".
type StatusClient struct {
	base   *BaseClient
	url    string
	apiKey string
}

// NewStatusClient creates a StatusClient. apiKey may be empty when the
// endpoint is unauthenticated.
func NewStatusClient(httpClient *http.Client, statusURL, apiKey string, opts ...BaseClientOption) *StatusClient {
	base := NewBaseClient(
		httpClient,
		"billing-status",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    250 * time.Millisecond,
			MaxWait:    2 * time.Second,
		},
		"CareerVision/1.0",
		opts...,
	)
	return &StatusClient{
		base:   base,
		url:    statusURL,
		apiKey: apiKey,
	}
}

// statusRequest is the wire request for the billing-status endpoint.
type statusRequest struct {
	CustomerID string `json:"customerId"`
}

// statusResponse is the wire response. A response without a subscription
// object means the customer has no subscription.
type statusResponse struct {
	Subscription *wireSubscription `json:"subscription"`
}

type wireSubscription struct {
	IsActive         bool       `json:"isActive"`
	Plan             string     `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd"`
}

// FetchStatus returns the customer's subscription status. Any failure --
// transport, non-2xx status, or an undecodable body -- is returned as a
// single error; callers treat all failure classes identically.
func (c *StatusClient) FetchStatus(ctx context.Context, customerID string) (types.SubscriptionStatus, error) {
	payload, err := json.Marshal(statusRequest{CustomerID: customerID})
	if err != nil {
		return types.InactiveStatus(), types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to encode status request",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return types.InactiveStatus(), types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build status request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return types.InactiveStatus(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.InactiveStatus(), types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("billing-status endpoint returned %d", resp.StatusCode),
			nil,
		)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.InactiveStatus(), types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"billing-status response was not decodable",
			err,
		)
	}

	// No subscription object: the customer has none.
	if body.Subscription == nil {
		return types.InactiveStatus(), nil
	}

	status := types.SubscriptionStatus{
		IsActive:         body.Subscription.IsActive,
		Plan:             types.Plan(body.Subscription.Plan),
		CurrentPeriodEnd: body.Subscription.CurrentPeriodEnd,
	}
	if !status.Plan.Valid() {
		status.Plan = types.PlanNone
	}
	return status, nil
}
