// Package notify holds the best-effort customer notifications. Callers get a
// Result back instead of an error: a failed text never fails the workflow
// that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
)

type Result struct {
	Sent      bool
	Skipped   bool
	MessageID string
	Err       error
}

func (r Result) String() string {
	switch {
	case r.Sent:
		return "sent " + r.MessageID
	case r.Skipped:
		return "skipped"
	case r.Err != nil:
		return "failed: " + r.Err.Error()
	default:
		return "unknown"
	}
}

// SMSSender texts a customer that their order is ready for pickup.
type SMSSender interface {
	SendReady(ctx context.Context, o *models.Order) Result
}

// SMSItem and SMSRequest form the body of POST /api/send-sms.
type SMSItem struct {
	Name        string `json:"name"`
	Size        string `json:"size,omitempty"`
	Temperature string `json:"temperature,omitempty"`
}

type SMSRequest struct {
	PhoneNumber  string    `json:"phoneNumber"`
	CustomerName string    `json:"customerName,omitempty"`
	OrderItems   []SMSItem `json:"orderItems"`
}

type SMSResponse struct {
	Success   bool   `json:"success,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   string `json:"details,omitempty"`
}

func NewSMSRequest(o *models.Order) SMSRequest {
	req := SMSRequest{
		PhoneNumber:  o.Customer.Phone,
		CustomerName: o.Customer.Name,
		OrderItems:   make([]SMSItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		req.OrderItems = append(req.OrderItems, SMSItem{Name: it.DrinkName, Size: it.Size, Temperature: it.Temperature})
	}
	return req
}

// SMSClient posts to the SMS dispatch endpoint.
type SMSClient struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

func NewSMSClient(endpoint string, log *slog.Logger) *SMSClient {
	return &SMSClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (c *SMSClient) SendReady(ctx context.Context, o *models.Order) Result {
	if c.endpoint == "" || o.Customer.Phone == "" {
		return Result{Skipped: true}
	}

	body, err := json.Marshal(NewSMSRequest(o))
	if err != nil {
		return Result{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Err: apperr.Provider("sms", err)}
	}
	defer resp.Body.Close()

	var out SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{Err: apperr.Provider("sms", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))}
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.Error
		if out.Details != "" {
			msg += ": " + out.Details
		}
		return Result{Err: apperr.Provider("sms", fmt.Errorf("status %d: %s", resp.StatusCode, msg))}
	}
	c.log.Info("ready sms sent", "order_id", o.ID, "message_id", out.MessageID)
	return Result{Sent: true, MessageID: out.MessageID}
}

// PushRegistrar accepts browser push tokens. Tokens are only logged; there
// is no delivery channel behind them yet.
type PushRegistrar struct {
	log *slog.Logger
}

func NewPushRegistrar(log *slog.Logger) *PushRegistrar {
	return &PushRegistrar{log: log}
}

func (p *PushRegistrar) Register(_ context.Context, token string) error {
	if token == "" {
		return apperr.Validation("token", "token is required")
	}
	p.log.Info("push token registered", "token", token)
	return nil
}
