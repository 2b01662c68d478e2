package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"coffeehouse/internal/apperr"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.ActiveOrders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleCompletedOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.CompletedOrders(r.Context(), boolQuery(r, "includeArchived"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.svc.MarkReady(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "completed"})
}

type verifyRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	CustomerName string          `json:"customerName"`
}

// handleVerifyDonation accepts an empty body, in which case the pledged
// amount and the order's customer name are used.
func (s *Server) handleVerifyDonation(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, apperr.Validation("", "bad JSON: %v", err))
		return
	}
	d, err := s.svc.VerifyDonation(r.Context(), mux.Vars(r)["id"], req.Amount, req.CustomerName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type pendingResponse struct {
	Orders        interface{}     `json:"orders"`
	DonationTotal decimal.Decimal `json:"donationTotal"`
}

func (s *Server) handlePendingDonations(w http.ResponseWriter, r *http.Request) {
	pending, err := s.svc.PendingDonations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := s.svc.DonationTotal(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Orders: pending, DonationTotal: total})
}

func (s *Server) handleVerifiedDonations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.VerifiedDonations(r.Context(), boolQuery(r, "includeArchived"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	scope := mux.Vars(r)["scope"]
	n, err := s.svc.Archive(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scope": scope, "archived": n})
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListAllReviews(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Menu(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type inventoryRequest struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	InStock *bool  `json:"inStock"`
}

func (s *Server) handleSetInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.InStock == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "inStock is required", Field: "inStock"})
		return
	}
	if err := s.svc.SetInventory(r.Context(), req.Kind, req.Name, *req.InStock); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleInventory(w, r)
}
