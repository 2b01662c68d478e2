package handler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
	"coffeehouse/internal/service"
)

// ErrExit is returned by Execute for the exit command.
var ErrExit = errors.New("exit")

var errUnknownCommand = errors.New("unknown command, type 'help' for the list")

type Handler struct {
	svc *service.OrderService
	out io.Writer
	loc *time.Location
}

func New(svc *service.OrderService, out io.Writer, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{svc: svc, out: out, loc: loc}
}

// Run reads commands line by line until exit or EOF.
func (h *Handler) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(h.out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		err := h.Execute(ctx, parts[0], parts[1:])
		if errors.Is(err, ErrExit) {
			fmt.Fprintln(h.out, "Bye.")
			return nil
		}
		if err != nil {
			fmt.Fprintf(h.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (h *Handler) Execute(ctx context.Context, cmd string, args []string) error {
	commands := map[string]func(context.Context, []string) error{
		"help":      h.printHelp,
		"exit":      func(context.Context, []string) error { return ErrExit },
		"queue":     h.handleQueue,
		"ready":     h.handleReady,
		"donations": h.handleDonations,
		"verify":    h.handleVerify,
		"archive":   h.handleArchive,
		"stock":     h.handleStock,
		"reviews":   h.handleReviews,
		"wait":      h.handleWait,
		"total":     h.handleTotal,
	}

	fn, ok := commands[cmd]
	if !ok {
		return errUnknownCommand
	}
	return fn(ctx, args)
}

func (h *Handler) printHelp(context.Context, []string) error {
	fmt.Fprintln(h.out, `Commands:
  help
    - show this help
  exit
    - quit
  queue
    - list orders waiting to be made, oldest first
  ready <orderID>
    - mark an order ready and text the customer
  donations
    - list pledges still to be checked
  verify <orderID> [amount]
    - record a checked donation (defaults to the pledged amount)
  archive today|donations|history
    - hide today's completed orders, the donation ledger, or all completed orders
  stock <drink|milk> <name...> <in|out>
    - mark a menu item in or out of stock
  reviews
    - list customer reviews, newest first
  wait
    - current wait estimate for a new order
  total
    - verified donation total and orders completed today`)
	return nil
}

func (h *Handler) handleQueue(ctx context.Context, _ []string) error {
	orders, err := h.svc.ActiveOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(h.out, "Queue is empty.")
		return nil
	}
	fmt.Fprintf(h.out, "%d order(s) in queue:\n", len(orders))
	for i, o := range orders {
		fmt.Fprintf(h.out, "  %d. %s  %s (%s)  %s  %s\n",
			i+1, shortID(o.ID), o.Customer.Name, o.Customer.Phone,
			o.SubmittedAt.In(h.loc).Format("15:04"), describeItems(o.Items))
	}
	return nil
}

func (h *Handler) handleReady(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(h.out, "Usage: ready <orderID>")
		return nil
	}
	orders, err := h.svc.ActiveOrders(ctx)
	if err != nil {
		return err
	}
	id, err := resolveID(args[0], orders)
	if err != nil {
		return err
	}
	if err := h.svc.MarkReady(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Order %s is ready.\n", shortID(id))
	return nil
}

func (h *Handler) handleDonations(ctx context.Context, _ []string) error {
	pending, err := h.svc.PendingDonations(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(h.out, "No donations waiting for verification.")
		return nil
	}
	fmt.Fprintln(h.out, "Pending donations:")
	for _, o := range pending {
		fmt.Fprintf(h.out, "  %s  %-20s $%s  %s\n", shortID(o.ID), o.Customer.Name, o.DonationPledged.StringFixed(2), o.CurrentState())
	}
	return nil
}

func (h *Handler) handleVerify(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(h.out, "Usage: verify <orderID> [amount]")
		return nil
	}
	amount := decimal.Zero
	if len(args) == 2 {
		a, err := decimal.NewFromString(strings.TrimPrefix(args[1], "$"))
		if err != nil {
			return apperr.Validation("amount", "invalid amount %q", args[1])
		}
		amount = a
	}
	completed, err := h.svc.CompletedOrders(ctx, false)
	if err != nil {
		return err
	}
	id, err := resolveID(args[0], completed)
	if err != nil {
		return err
	}
	d, err := h.svc.VerifyDonation(ctx, id, amount, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Verified $%s from %s.\n", d.Amount.StringFixed(2), d.CustomerName)
	return nil
}

func (h *Handler) handleArchive(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(h.out, "Usage: archive today|donations|history")
		return nil
	}
	n, err := h.svc.Archive(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Archived %d record(s).\n", n)
	return nil
}

func (h *Handler) handleStock(ctx context.Context, args []string) error {
	if len(args) < 3 {
		fmt.Fprintln(h.out, "Usage: stock <drink|milk> <name...> <in|out>")
		return nil
	}
	var inStock bool
	switch args[len(args)-1] {
	case "in":
		inStock = true
	case "out":
	default:
		fmt.Fprintln(h.out, "Usage: stock <drink|milk> <name...> <in|out>")
		return nil
	}
	name := strings.Join(args[1:len(args)-1], " ")
	if err := h.svc.SetInventory(ctx, args[0], name, inStock); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "%s is now %s of stock.\n", name, args[len(args)-1])
	return nil
}

func (h *Handler) handleReviews(ctx context.Context, _ []string) error {
	reviews, err := h.svc.ListAllReviews(ctx)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		fmt.Fprintln(h.out, "No reviews yet.")
		return nil
	}
	for _, o := range reviews {
		fmt.Fprintf(h.out, "  %s  %s  %s", strings.Repeat("*", *o.Rating), o.Customer.Name, describeItems(o.Items))
		if o.ReviewComment != "" {
			fmt.Fprintf(h.out, "  %q", o.ReviewComment)
		}
		fmt.Fprintln(h.out)
	}
	return nil
}

func (h *Handler) handleWait(ctx context.Context, _ []string) error {
	fmt.Fprintf(h.out, "Estimated wait: %s\n", h.svc.EstimateWait(ctx, "").DisplayText)
	return nil
}

func (h *Handler) handleTotal(ctx context.Context, _ []string) error {
	total, err := h.svc.DonationTotal(ctx)
	if err != nil {
		return err
	}
	today, err := h.svc.CompletedTodayCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Verified donations: $%s\nCompleted today: %d\n", total.StringFixed(2), today)
	return nil
}

// resolveID accepts a full id or a unique prefix of one of the candidates.
func resolveID(arg string, candidates []*models.Order) (string, error) {
	var match string
	for _, o := range candidates {
		if o.ID == arg {
			return arg, nil
		}
		if strings.HasPrefix(o.ID, arg) {
			if match != "" {
				return "", apperr.Validation("orderID", "prefix %q matches more than one order", arg)
			}
			match = o.ID
		}
	}
	if match == "" {
		return arg, nil
	}
	return match, nil
}

func describeItems(items models.OrderItems) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		s := it.DrinkName
		var opts []string
		for _, o := range []string{it.Size, it.Temperature, it.MilkType} {
			if o != "" {
				opts = append(opts, o)
			}
		}
		if len(opts) > 0 {
			s += " (" + strings.Join(opts, ", ") + ")"
		}
		if it.SpecialInstructions != "" {
			s += " [" + it.SpecialInstructions + "]"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
