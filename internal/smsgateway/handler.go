package smsgateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"coffeehouse/internal/notify"
)

type Handler struct {
	sender Sender
	log    *slog.Logger
}

// NewHandler builds the endpoint; a nil sender means the provider
// credentials are missing and every request is answered with 500.
func NewHandler(sender Sender, log *slog.Logger) *Handler {
	return &Handler{sender: sender, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, notify.SMSResponse{Error: "Method not allowed"})
		return
	}

	var req notify.SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, notify.SMSResponse{Error: "Invalid request body"})
		return
	}
	h.log.Info("sms requested", "customer", req.CustomerName, "items", len(req.OrderItems))

	if req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, notify.SMSResponse{Error: "Phone number is required"})
		return
	}
	if h.sender == nil {
		h.log.Error("sms provider credentials not configured")
		writeJSON(w, http.StatusInternalServerError, notify.SMSResponse{Error: "SMS service not configured. Please contact support."})
		return
	}

	id, err := h.sender.Send(r.Context(), req.PhoneNumber, ReadyMessage(req.CustomerName, req.OrderItems))
	if err != nil {
		h.log.Error("sms send failed", "error", err)
		if msg := err.Error(); strings.Contains(msg, "Invalid") || strings.Contains(msg, "number") {
			writeJSON(w, http.StatusBadRequest, notify.SMSResponse{Error: "Invalid phone number format"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, notify.SMSResponse{Error: "Failed to send SMS notification", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, notify.SMSResponse{Success: true, MessageID: id, Message: "SMS notification sent successfully"})
}

// ReadyMessage renders the pickup text.
func ReadyMessage(customerName string, items []notify.SMSItem) string {
	if customerName == "" {
		customerName = "there"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s! ☕\n\nYour order is ready for pickup at FX7 Coffee House!\n\n", customerName)
	if len(items) > 0 {
		sb.WriteString("Order:\n")
		for i, it := range items {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("  • " + it.Name)
			if it.Size != "" {
				sb.WriteString(" (" + it.Size + ")")
			}
			if it.Temperature != "" {
				sb.WriteString(" - " + it.Temperature)
			}
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString("Please come to the counter to pick up your order.\n\n")
	sb.WriteString("Thank you for supporting Feeding America with your purchase! 💚\n\n")
	sb.WriteString("- FX7 Coffee House")
	return sb.String()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
