package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"coffeehouse/internal/audit"
	"coffeehouse/internal/auth"
	"coffeehouse/internal/live"
	"coffeehouse/internal/logging"
	"coffeehouse/internal/middleware"
	"coffeehouse/internal/notify"
	"coffeehouse/internal/service"
)

type Options struct {
	Addr        string
	PublicURL   string
	CORSOrigins []string
	Service     *service.OrderService
	Auth        *auth.Authenticator
	Hub         *live.Hub
	// SMSGateway serves POST /api/send-sms; nil leaves the route unregistered.
	SMSGateway http.Handler
	Push       *notify.PushRegistrar
	Audit      *audit.AuditWorkerPool
	Limiter    *middleware.RateLimiter
	Log        *slog.Logger
	Now        func() time.Time
}

type Server struct {
	svc       *service.OrderService
	auth      *auth.Authenticator
	hub       *live.Hub
	sms       http.Handler
	push      *notify.PushRegistrar
	audit     *audit.AuditWorkerPool
	limiter   *middleware.RateLimiter
	log       *slog.Logger
	addr      string
	publicURL string
	origins   []string
	now       func() time.Time
}

func NewServer(o Options) *Server {
	s := &Server{
		svc:       o.Service,
		auth:      o.Auth,
		hub:       o.Hub,
		sms:       o.SMSGateway,
		push:      o.Push,
		audit:     o.Audit,
		limiter:   o.Limiter,
		log:       o.Log,
		addr:      o.Addr,
		publicURL: o.PublicURL,
		origins:   o.CORSOrigins,
		now:       o.Now,
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.push == nil {
		s.push = notify.NewPushRegistrar(s.log)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/menu", s.handleMenu).Methods(http.MethodGet)

	api.HandleFunc("/cart/{cartId}", s.handleGetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart/{cartId}", s.handleClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/{cartId}/items", s.handleAddCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/{cartId}/items/{index:[0-9]+}", s.handleRemoveCartItem).Methods(http.MethodDelete)

	api.Handle("/orders", s.limited(s.handleSubmitOrder)).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/wait", s.handleOrderWait).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/qr.png", s.handleOrderQR).Methods(http.MethodGet)
	api.Handle("/orders/{id}/review", s.limited(s.handleSubmitReview)).Methods(http.MethodPost)
	api.HandleFunc("/wait", s.handleWait).Methods(http.MethodGet)
	api.HandleFunc("/my-orders", s.handleMyOrders).Methods(http.MethodGet)
	api.HandleFunc("/push/register", s.handlePushRegister).Methods(http.MethodPost)
	if s.sms != nil {
		api.Handle("/send-sms", s.sms)
	}
	api.Handle("/dashboard/login", s.limited(s.handleLogin)).Methods(http.MethodPost)

	guard := []mux.MiddlewareFunc{mux.MiddlewareFunc(middleware.DashboardAuth(s.auth))}
	if s.audit != nil {
		guard = append(guard, mux.MiddlewareFunc(middleware.Audit(s.audit, http.MethodPost, http.MethodPut, http.MethodDelete)))
	}

	dash := api.PathPrefix("/dashboard").Subrouter()
	dash.Use(guard...)
	dash.HandleFunc("", s.handleDashboard).Methods(http.MethodGet)
	dash.HandleFunc("/orders", s.handleActiveOrders).Methods(http.MethodGet)
	dash.HandleFunc("/completed", s.handleCompletedOrders).Methods(http.MethodGet)
	dash.HandleFunc("/orders/{id}/ready", s.handleMarkReady).Methods(http.MethodPost)
	dash.HandleFunc("/orders/{id}/verify-donation", s.handleVerifyDonation).Methods(http.MethodPost)
	dash.HandleFunc("/donations/pending", s.handlePendingDonations).Methods(http.MethodGet)
	dash.HandleFunc("/donations/verified", s.handleVerifiedDonations).Methods(http.MethodGet)
	dash.HandleFunc("/donations/report.pdf", s.handleDonationReport).Methods(http.MethodGet)
	dash.HandleFunc("/archive/{scope}", s.handleArchive).Methods(http.MethodPost)
	dash.HandleFunc("/reviews", s.handleReviews).Methods(http.MethodGet)
	dash.HandleFunc("/inventory", s.handleInventory).Methods(http.MethodGet)
	dash.HandleFunc("/inventory", s.handleSetInventory).Methods(http.MethodPut)

	if s.hub != nil {
		liveRoute := api.PathPrefix("/live").Subrouter()
		liveRoute.Use(guard...)
		liveRoute.Handle("/{collection}", live.Handler(s.hub, s.log)).Methods(http.MethodGet)
	}
}

// Handler is the full router with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	return middleware.Chain(r, middleware.CORS(s.origins), middleware.RequestLogger(s.log))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Limit(h)
}
