package handler

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
	"coffeehouse/internal/service"
	"coffeehouse/internal/storage"
)

type console struct {
	h   *Handler
	svc *service.OrderService
	out *bytes.Buffer
	ids []string
}

func newConsole(t *testing.T) *console {
	t.Helper()
	st, err := storage.New("")
	require.NoError(t, err)
	clock := time.Date(2024, 12, 14, 10, 0, 0, 0, time.UTC)
	n := 0
	svc := service.NewOrderService(service.Deps{
		Repo:     st,
		Location: time.UTC,
		Now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
		NewID: func() string {
			n++
			return strings.Repeat(string(rune('a'+n)), 12)
		},
	})
	out := &bytes.Buffer{}
	return &console{h: New(svc, out, time.UTC), svc: svc, out: out}
}

func (c *console) submit(t *testing.T, name string, donation int64) string {
	t.Helper()
	o, err := c.svc.Submit(context.Background(), service.SubmitRequest{
		Items:    []models.OrderItem{{DrinkName: "Gingerbread Latte", Temperature: "Hot", MilkType: "Oat Milk"}},
		Customer: models.Customer{Name: name, Phone: "555-0100"},
		Donation: decimal.NewFromInt(donation),
	})
	require.NoError(t, err)
	return o.ID
}

func (c *console) run(t *testing.T, line string) string {
	t.Helper()
	c.out.Reset()
	parts := strings.Fields(line)
	require.NoError(t, c.h.Execute(context.Background(), parts[0], parts[1:]))
	return c.out.String()
}

func TestQueueAndReady(t *testing.T) {
	c := newConsole(t)
	assert.Contains(t, c.run(t, "queue"), "Queue is empty.")

	id := c.submit(t, "Ana", 3)
	out := c.run(t, "queue")
	assert.Contains(t, out, "1 order(s) in queue")
	assert.Contains(t, out, "Gingerbread Latte (Hot, Oat Milk)")

	assert.Contains(t, c.run(t, "ready "+id[:4]), "is ready")
	assert.Contains(t, c.run(t, "queue"), "Queue is empty.")
}

func TestDonationsVerifyTotal(t *testing.T) {
	c := newConsole(t)
	id := c.submit(t, "Ana", 3)
	c.run(t, "ready "+id)

	assert.Contains(t, c.run(t, "donations"), "$3.00")
	assert.Contains(t, c.run(t, "verify "+id+" $5"), "Verified $5.00 from Ana.")
	assert.Contains(t, c.run(t, "donations"), "No donations waiting")

	out := c.run(t, "total")
	assert.Contains(t, out, "Verified donations: $5.00")
	assert.Contains(t, out, "Completed today: 1")

	err := c.h.Execute(context.Background(), "verify", []string{id, "lots"})
	assert.True(t, apperr.IsValidation(err))
}

func TestStockAndArchive(t *testing.T) {
	c := newConsole(t)
	assert.Contains(t, c.run(t, "stock milk Oat Milk out"), "Oat Milk is now out of stock.")
	_, err := c.svc.Submit(context.Background(), service.SubmitRequest{
		Items:    []models.OrderItem{{DrinkName: "Peppermint Mocha", MilkType: "Oat Milk"}},
		Customer: models.Customer{Name: "Bo", Phone: "1"},
	})
	assert.True(t, apperr.IsValidation(err))

	err = c.h.Execute(context.Background(), "stock", []string{"drink", "Pumpkin", "Spice", "out"})
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, c.run(t, "stock milk Oat Milk sideways"), "Usage: stock")

	id := c.submit(t, "Ana", 0)
	c.run(t, "ready "+id)
	assert.Contains(t, c.run(t, "archive today"), "Archived 1 record(s).")
	assert.Contains(t, c.run(t, "archive history"), "Archived 0 record(s).")
}

func TestReviewsAndWait(t *testing.T) {
	c := newConsole(t)
	assert.Contains(t, c.run(t, "reviews"), "No reviews yet.")
	id := c.submit(t, "Ana", 0)
	c.run(t, "ready "+id)
	require.NoError(t, c.svc.SubmitReview(context.Background(), id, 4, "cozy"))
	out := c.run(t, "reviews")
	assert.Contains(t, out, "****  Ana")
	assert.Contains(t, out, `"cozy"`)

	assert.Contains(t, c.run(t, "wait"), "Estimated wait: ")
}

func TestUnknownCommandAndExit(t *testing.T) {
	c := newConsole(t)
	assert.ErrorIs(t, c.h.Execute(context.Background(), "brew", nil), errUnknownCommand)
	assert.ErrorIs(t, c.h.Execute(context.Background(), "exit", nil), ErrExit)
}

func TestRunLoop(t *testing.T) {
	c := newConsole(t)
	in := strings.NewReader("help\n\nbogus\nwait\nexit\nqueue\n")
	require.NoError(t, c.h.Run(context.Background(), in))
	out := c.out.String()
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "error: unknown command")
	assert.Contains(t, out, "Bye.")
	assert.NotContains(t, out, "Queue is empty.")
}

func TestResolveID(t *testing.T) {
	orders := []*models.Order{{ID: "abc123"}, {ID: "abd456"}}
	id, err := resolveID("abc", orders)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = resolveID("ab", orders)
	assert.True(t, apperr.IsValidation(err))

	id, err = resolveID("zzz", orders)
	require.NoError(t, err)
	assert.Equal(t, "zzz", id)
}
