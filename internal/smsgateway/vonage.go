// Package smsgateway serves POST /api/send-sms and relays the pickup text to
// the Vonage SMS API.
package smsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to, text string) (messageID string, err error)
}

type VonageClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	from      string
	client    *http.Client
}

func NewVonageClient(baseURL, apiKey, apiSecret, from string) *VonageClient {
	return &VonageClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		from:      from,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type vonageMessage struct {
	To        string `json:"to"`
	MessageID string `json:"message-id"`
	Status    string `json:"status"`
	ErrorText string `json:"error-text"`
}

type vonageResponse struct {
	MessageCount string          `json:"message-count"`
	Messages     []vonageMessage `json:"messages"`
}

var errBadResponse = errors.New("Invalid response from Vonage API")

func (c *VonageClient) Send(ctx context.Context, to, text string) (string, error) {
	form := url.Values{
		"api_key":    {c.apiKey},
		"api_secret": {c.apiSecret},
		"from":       {c.from},
		"to":         {to},
		"text":       {text},
		"type":       {"unicode"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sms/json", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vonage request: %w", err)
	}
	defer resp.Body.Close()

	var out vonageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Messages) == 0 {
		return "", errBadResponse
	}
	msg := out.Messages[0]
	if msg.Status != "0" {
		errText := msg.ErrorText
		if errText == "" {
			errText = "Unknown error"
		}
		return "", fmt.Errorf("Vonage error: %s", errText)
	}
	return msg.MessageID, nil
}
