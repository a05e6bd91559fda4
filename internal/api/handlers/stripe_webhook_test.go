package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"careervision/internal/types"
)

type mockVerifier struct {
	err error
}

func (m *mockVerifier) Verify(payload []byte, header string, secret string) error {
	return m.err
}

type mockProcessor struct {
	payloads [][]byte
	err      error
}

func (m *mockProcessor) Process(ctx context.Context, payload []byte) error {
	m.payloads = append(m.payloads, payload)
	return m.err
}

var (
	_ WebhookVerifier = (*mockVerifier)(nil)
	_ EventProcessor  = (*mockProcessor)(nil)
)

func newWebhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest("POST", "/v1/billing/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req.WithContext(types.WithRequestID(req.Context(), "req_test_123"))
}

func TestWebhookHandle_Success(t *testing.T) {
	processor := &mockProcessor{}
	h := NewStripeWebhookHandler(&mockVerifier{}, processor, "whsec_test", nil)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	rr := httptest.NewRecorder()
	h.Handle(rr, newWebhookRequest(payload, "t=1,v1=sig"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if len(processor.payloads) != 1 || !bytes.Equal(processor.payloads[0], payload) {
		t.Error("the verified payload must reach the processor unchanged")
	}
}

func TestWebhookHandle_MissingSignature(t *testing.T) {
	processor := &mockProcessor{}
	h := NewStripeWebhookHandler(&mockVerifier{}, processor, "whsec_test", nil)

	rr := httptest.NewRecorder()
	h.Handle(rr, newWebhookRequest([]byte(`{}`), ""))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if len(processor.payloads) != 0 {
		t.Error("an unsigned payload must never reach the processor")
	}
}

func TestWebhookHandle_BadSignature(t *testing.T) {
	processor := &mockProcessor{}
	h := NewStripeWebhookHandler(&mockVerifier{err: errors.New("signature mismatch")}, processor, "whsec_test", nil)

	rr := httptest.NewRecorder()
	h.Handle(rr, newWebhookRequest([]byte(`{}`), "t=1,v1=bad"))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if len(processor.payloads) != 0 {
		t.Error("a forged payload must never reach the processor")
	}
}

func TestWebhookHandle_ProcessorErrorTriggersRetry(t *testing.T) {
	processor := &mockProcessor{err: types.NewAppError(types.ErrCodeInternalDB, "write failed", nil)}
	h := NewStripeWebhookHandler(&mockVerifier{}, processor, "whsec_test", nil)

	rr := httptest.NewRecorder()
	h.Handle(rr, newWebhookRequest([]byte(`{"type":"customer.subscription.updated"}`), "t=1,v1=sig"))

	// Non-2xx so the provider redelivers the event.
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestWebhookHandle_OversizedBody(t *testing.T) {
	h := NewStripeWebhookHandler(&mockVerifier{}, &mockProcessor{}, "whsec_test", nil)

	big := bytes.Repeat([]byte("a"), maxWebhookBodySize+1)
	rr := httptest.NewRecorder()
	h.Handle(rr, newWebhookRequest(big, "t=1,v1=sig"))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
