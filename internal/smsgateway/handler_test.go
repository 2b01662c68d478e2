package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeehouse/internal/logging"
	"coffeehouse/internal/notify"
)

type fakeSender struct {
	to, text string
	id       string
	err      error
}

func (f *fakeSender) Send(_ context.Context, to, text string) (string, error) {
	f.to, f.text = to, text
	return f.id, f.err
}

func do(t *testing.T, h http.Handler, method string, body interface{}) (*httptest.ResponseRecorder, notify.SMSResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, "/api/send-sms", &buf))
	var out notify.SMSResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

var validReq = notify.SMSRequest{
	PhoneNumber:  "15551234567",
	CustomerName: "Ana",
	OrderItems:   []notify.SMSItem{{Name: "Peppermint Mocha", Size: "12oz", Temperature: "Hot"}},
}

func TestSendSMSSuccess(t *testing.T) {
	s := &fakeSender{id: "msg-1"}
	rec, out := do(t, NewHandler(s, logging.Discard()), http.MethodPost, validReq)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, out.Success)
	assert.Equal(t, "msg-1", out.MessageID)
	assert.Equal(t, "SMS notification sent successfully", out.Message)
	assert.Equal(t, "15551234567", s.to)
	assert.Contains(t, s.text, "Hi Ana! ☕")
	assert.Contains(t, s.text, "Order:\n  • Peppermint Mocha (12oz) - Hot\n\n")
}

func TestSendSMSErrors(t *testing.T) {
	cases := []struct {
		name    string
		sender  Sender
		method  string
		body    interface{}
		status  int
		errText string
	}{
		{"wrong method", &fakeSender{}, http.MethodGet, nil, http.StatusMethodNotAllowed, "Method not allowed"},
		{"missing phone", &fakeSender{}, http.MethodPost, notify.SMSRequest{CustomerName: "Ana"}, http.StatusBadRequest, "Phone number is required"},
		{"not configured", nil, http.MethodPost, validReq, http.StatusInternalServerError, "SMS service not configured. Please contact support."},
		{"invalid number", &fakeSender{err: errors.New("Vonage error: Invalid Message")}, http.MethodPost, validReq, http.StatusBadRequest, "Invalid phone number format"},
		{"provider down", &fakeSender{err: errors.New("Vonage error: Throttled")}, http.MethodPost, validReq, http.StatusInternalServerError, "Failed to send SMS notification"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := do(t, NewHandler(tc.sender, logging.Discard()), tc.method, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.errText, out.Error)
		})
	}
}

func TestProviderFailureDetails(t *testing.T) {
	_, out := do(t, NewHandler(&fakeSender{err: errors.New("Vonage error: Throttled")}, logging.Discard()), http.MethodPost, validReq)
	assert.Equal(t, "Vonage error: Throttled", out.Details)
}

func TestReadyMessage(t *testing.T) {
	msg := ReadyMessage("", nil)
	assert.Equal(t, "Hi there! ☕\n\nYour order is ready for pickup at FX7 Coffee House!\n\n"+
		"Please come to the counter to pick up your order.\n\n"+
		"Thank you for supporting Feeding America with your purchase! 💚\n\n- FX7 Coffee House", msg)

	msg = ReadyMessage("Bo", []notify.SMSItem{{Name: "Gingerbread Latte"}, {Name: "Graham Cracker Matcha", Temperature: "Iced"}})
	assert.Contains(t, msg, "Order:\n  • Gingerbread Latte\n  • Graham Cracker Matcha - Iced\n\n")
}
