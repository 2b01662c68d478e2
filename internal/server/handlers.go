package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/auth"
	"coffeehouse/internal/models"
	"coffeehouse/internal/report"
	"coffeehouse/internal/service"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Menu(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type cartResponse struct {
	CartID string             `json:"cartId"`
	Items  []models.OrderItem `json:"items"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["cartId"]
	items, err := s.svc.CartItems(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{CartID: id, Items: items})
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["cartId"]
	var item models.OrderItem
	if err := decodeJSON(r, &item); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.svc.AddCartItem(r.Context(), id, item)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cartResponse{CartID: id, Items: items})
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		s.writeError(w, r, apperr.Validation("index", "invalid item index"))
		return
	}
	items, err := s.svc.RemoveCartItem(r.Context(), vars["cartId"], index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{CartID: vars["cartId"], Items: items})
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearCart(r.Context(), mux.Vars(r)["cartId"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.svc.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleOrderWait(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.EstimateWait(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.EstimateWait(r.Context(), ""))
}

func (s *Server) handleOrderQR(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.svc.GetOrder(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := report.PickupQR(s.publicURL, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.SubmitReview(r.Context(), mux.Vars(r)["id"], req.Rating, req.Comment); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.ListOrdersByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handlePushRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.push.Register(r.Context(), req.Token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, exp, err := s.auth.Login(req.Password)
	if errors.Is(err, auth.ErrBadPassword) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid password"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
}

func (s *Server) handleDonationReport(w http.ResponseWriter, r *http.Request) {
	donations, err := s.svc.VerifiedDonations(r.Context(), boolQuery(r, "includeArchived"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.DonationLedger(&buf, donations, s.now()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=donations-"+s.now().Format("2006-01-02")+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
