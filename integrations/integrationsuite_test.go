//go:build integration

package integrations

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"coffeehouse/internal/auth"
	"coffeehouse/internal/config"
	"coffeehouse/internal/db"
	"coffeehouse/internal/logging"
	"coffeehouse/internal/models"
	"coffeehouse/internal/repository"
	"coffeehouse/internal/server"
	"coffeehouse/internal/service"
)

const (
	testUsername = "barista"
	testPassword = "integration"
)

type IntegrationSuite struct {
	suite.Suite
	db         *sql.DB
	testServer *httptest.Server
}

func (s *IntegrationSuite) SetupSuite() {
	cfg := config.LoadConfig()

	var err error
	s.db, err = db.NewDB(context.Background(), cfg.DSN)
	s.Require().NoError(err, "connect and migrate")

	repo := repository.NewOrderRepository(s.db)
	svc := service.NewOrderService(service.Deps{Repo: repo, Log: logging.Discard(), Location: time.UTC})
	authn, err := auth.New(auth.Config{Secret: []byte("integration"), User: testUsername, Password: testPassword})
	s.Require().NoError(err)

	srv := server.NewServer(server.Options{Service: svc, Auth: authn, PublicURL: "http://localhost"})
	s.testServer = httptest.NewServer(srv.Handler())
}

func (s *IntegrationSuite) SetupTest() {
	_, err := s.db.Exec(`TRUNCATE orders, completed_orders, verified_donations, inventory, tasks, audit_logs`)
	s.Require().NoError(err)
}

func (s *IntegrationSuite) TearDownSuite() {
	s.testServer.Close()
	_ = s.db.Close()
}

func (s *IntegrationSuite) submit(phone string) models.Order {
	resp, body := s.doRequest(http.MethodPost, "/api/orders", map[string]interface{}{
		"items":    []models.OrderItem{{DrinkName: "Peppermint Mocha", Temperature: "Hot"}},
		"customer": models.Customer{Name: "Ana", Phone: phone},
		"donation": 5,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var o models.Order
	s.Require().NoError(json.Unmarshal(body, &o))
	return o
}

func (s *IntegrationSuite) count(table string) int {
	var n int
	s.Require().NoError(s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n))
	return n
}

func (s *IntegrationSuite) TestOrderLifecycle() {
	o := s.submit("555-1234")
	s.Equal(1, s.count("orders"))

	resp, _ := s.doRequest(http.MethodPost, "/api/dashboard/orders/"+o.ID+"/ready", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(0, s.count("orders"))
	s.Equal(1, s.count("completed_orders"))

	for i := 0; i < 2; i++ {
		resp, _ = s.doRequest(http.MethodPost, "/api/dashboard/orders/"+o.ID+"/verify-donation", nil)
		s.Equal(http.StatusCreated, resp.StatusCode)
	}
	s.Equal(2, s.count("verified_donations"))

	// submitted, completed, two verifications
	s.Equal(4, s.count("tasks"))
}

func (s *IntegrationSuite) TestMarkReadyUnknownOrder() {
	resp, _ := s.doRequest(http.MethodPost, "/api/dashboard/orders/nope/ready", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(0, s.count("completed_orders"))
	s.Equal(0, s.count("tasks"))
}

func (s *IntegrationSuite) TestArchiveKeepsHistory() {
	o := s.submit("555")
	resp, _ := s.doRequest(http.MethodPost, "/api/dashboard/orders/"+o.ID+"/ready", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, body := s.doRequest(http.MethodPost, "/api/dashboard/archive/history", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"scope":"history","archived":1}`, string(body))
	s.Equal(1, s.count("completed_orders"))
}

func (s *IntegrationSuite) TestReviewAndMyOrders() {
	o := s.submit("555-1234")
	s.submit("555-12345")
	resp, _ := s.doRequest(http.MethodPost, "/api/dashboard/orders/"+o.ID+"/ready", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.doRequest(http.MethodPost, "/api/orders/"+o.ID+"/review", map[string]interface{}{"rating": 5, "comment": "perfect"})
	s.Equal(http.StatusNoContent, resp.StatusCode)

	resp, body := s.doRequest(http.MethodGet, "/api/my-orders?phone=555-1234", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var mine []models.Order
	s.Require().NoError(json.Unmarshal(body, &mine))
	s.Require().Len(mine, 1)
	s.Require().NotNil(mine[0].Rating)
	s.Equal(5, *mine[0].Rating)
}

func (s *IntegrationSuite) doRequest(method, path string, body interface{}) (*http.Response, []byte) {
	var reqBody []byte
	var err error
	if body != nil {
		reqBody, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	req, err := http.NewRequest(method, s.testServer.URL+path, bytes.NewReader(reqBody))
	s.Require().NoError(err)
	req.SetBasicAuth(testUsername, testPassword)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	s.Require().NoError(err)
	return resp, respBody
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}
