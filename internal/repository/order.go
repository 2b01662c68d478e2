package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
)

const (
	activeColumns    = `id, items, customer_name, customer_phone, donation_pledged, submitted_at, created_at`
	completedColumns = activeColumns + `, completed_at, donation_verified, archived, archived_at, rating, review_comment, reviewed_at`
	donationColumns  = `id, order_id, customer_name, amount, verified_at, archived, archived_at`
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// OrderRepository is the PostgreSQL store. A repository bound to a
// transaction (see WithTx) shares the same methods.
type OrderRepository struct {
	db *sql.DB
	q  querier
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, q: db}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.db == nil {
		// already inside a transaction
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&OrderRepository{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `INSERT INTO orders (` + activeColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.q.ExecContext(ctx, query,
		o.ID, o.Items, o.Customer.Name, o.Customer.Phone, o.DonationPledged, o.SubmittedAt, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetActiveOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + activeColumns + ` FROM orders WHERE id=$1`
	o, err := scanActive(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListActiveOrders(ctx context.Context, f ActiveFilter) ([]*models.Order, error) {
	query := `SELECT ` + activeColumns + ` FROM orders`
	var args []interface{}
	if f.Phone != "" {
		query += ` WHERE customer_phone=$1`
		args = append(args, f.Phone)
	}
	query += ` ORDER BY submitted_at ASC, created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	var res []*models.Order
	for rows.Next() {
		o, err := scanActive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active order: %w", err)
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r *OrderRepository) DeleteActiveOrder(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete active order: %w", err)
	}
	return expectRow(res, "order", id)
}

func (r *OrderRepository) InsertCompletedOrder(ctx context.Context, o *models.Order) error {
	query := `INSERT INTO completed_orders (` + completedColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.q.ExecContext(ctx, query,
		o.ID, o.Items, o.Customer.Name, o.Customer.Phone, o.DonationPledged, o.SubmittedAt, o.CreatedAt,
		o.CompletedAt, o.DonationVerified, o.Archived, nullTime(o.ArchivedAt),
		nullInt(o.Rating), nullString(o.ReviewComment), nullTime(o.ReviewedAt),
	)
	if err != nil {
		return fmt.Errorf("insert completed order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetCompletedOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + completedColumns + ` FROM completed_orders WHERE id=$1`
	o, err := scanCompleted(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completed order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListCompletedOrders(ctx context.Context, f CompletedFilter) ([]*models.Order, error) {
	var filters []string
	var args []interface{}
	idx := 1

	query := `SELECT ` + completedColumns + ` FROM completed_orders`
	if f.Phone != "" {
		filters = append(filters, fmt.Sprintf("customer_phone=$%d", idx))
		args = append(args, f.Phone)
		idx++
	}
	if !f.IncludeArchived {
		filters = append(filters, "archived=FALSE")
	}
	if f.RatedOnly {
		filters = append(filters, "rating IS NOT NULL")
	}
	if !f.CompletedSince.IsZero() {
		filters = append(filters, fmt.Sprintf("completed_at>=$%d", idx))
		args = append(args, f.CompletedSince)
		idx++
	}
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	query += ` ORDER BY completed_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, f.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completed orders: %w", err)
	}
	defer rows.Close()

	var res []*models.Order
	for rows.Next() {
		o, err := scanCompleted(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completed order: %w", err)
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r *OrderRepository) SetDonationVerified(ctx context.Context, id string, verified bool) error {
	res, err := r.q.ExecContext(ctx, `UPDATE completed_orders SET donation_verified=$1 WHERE id=$2`, verified, id)
	if err != nil {
		return fmt.Errorf("set donation verified: %w", err)
	}
	return expectRow(res, "completed order", id)
}

func (r *OrderRepository) SaveReview(ctx context.Context, id string, rating int, comment string, at time.Time) error {
	query := `UPDATE completed_orders SET rating=$1, review_comment=$2, reviewed_at=$3 WHERE id=$4`
	res, err := r.q.ExecContext(ctx, query, rating, nullString(comment), at, id)
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return expectRow(res, "completed order", id)
}

func (r *OrderRepository) InsertVerifiedDonation(ctx context.Context, d *models.VerifiedDonation) error {
	query := `INSERT INTO verified_donations (` + donationColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.q.ExecContext(ctx, query,
		d.ID, d.OrderID, d.CustomerName, d.Amount, d.VerifiedAt, d.Archived, nullTime(d.ArchivedAt),
	)
	if err != nil {
		return fmt.Errorf("insert verified donation: %w", err)
	}
	return nil
}

func (r *OrderRepository) ListVerifiedDonations(ctx context.Context, includeArchived bool) ([]*models.VerifiedDonation, error) {
	query := `SELECT ` + donationColumns + ` FROM verified_donations`
	if !includeArchived {
		query += ` WHERE archived=FALSE`
	}
	query += ` ORDER BY verified_at DESC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list verified donations: %w", err)
	}
	defer rows.Close()

	var res []*models.VerifiedDonation
	for rows.Next() {
		d := &models.VerifiedDonation{}
		var archivedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.OrderID, &d.CustomerName, &d.Amount, &d.VerifiedAt, &d.Archived, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan verified donation: %w", err)
		}
		d.ArchivedAt = timePtr(archivedAt)
		res = append(res, d)
	}
	return res, rows.Err()
}

// ArchiveCompletedOrders archives every unarchived completed order; a
// non-zero since restricts the sweep to completions at or after it.
func (r *OrderRepository) ArchiveCompletedOrders(ctx context.Context, since, at time.Time) (int64, error) {
	query := `UPDATE completed_orders SET archived=TRUE, archived_at=$1 WHERE archived=FALSE`
	args := []interface{}{at}
	if !since.IsZero() {
		query += ` AND completed_at>=$2`
		args = append(args, since)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("archive completed orders: %w", err)
	}
	return res.RowsAffected()
}

func (r *OrderRepository) ArchiveVerifiedDonations(ctx context.Context, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE verified_donations SET archived=TRUE, archived_at=$1 WHERE archived=FALSE`, at)
	if err != nil {
		return 0, fmt.Errorf("archive verified donations: %w", err)
	}
	return res.RowsAffected()
}

func (r *OrderRepository) ListInventory(ctx context.Context) ([]models.InventoryFlag, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT kind, name, in_stock, updated_at FROM inventory ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var res []models.InventoryFlag
	for rows.Next() {
		var f models.InventoryFlag
		if err := rows.Scan(&f.Kind, &f.Name, &f.InStock, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (r *OrderRepository) SetInventory(ctx context.Context, f models.InventoryFlag) error {
	query := `INSERT INTO inventory (kind, name, in_stock, updated_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (kind, name) DO UPDATE SET in_stock=EXCLUDED.in_stock, updated_at=EXCLUDED.updated_at`
	if _, err := r.q.ExecContext(ctx, query, f.Kind, f.Name, f.InStock, f.UpdatedAt); err != nil {
		return fmt.Errorf("set inventory: %w", err)
	}
	return nil
}

// RecordEvent writes ev to the outbox using the repository's connection, so
// inside WithTx it commits or rolls back with the change it describes.
func (r *OrderRepository) RecordEvent(ctx context.Context, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return createTask(ctx, r.q, payload)
}

func scanActive(s scanner) (*models.Order, error) {
	o := &models.Order{Status: models.OrderStatusActive}
	err := s.Scan(&o.ID, &o.Items, &o.Customer.Name, &o.Customer.Phone, &o.DonationPledged, &o.SubmittedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanCompleted(s scanner) (*models.Order, error) {
	o := &models.Order{}
	var (
		archivedAt, reviewedAt sql.NullTime
		rating                 sql.NullInt64
		comment                sql.NullString
	)
	err := s.Scan(&o.ID, &o.Items, &o.Customer.Name, &o.Customer.Phone, &o.DonationPledged, &o.SubmittedAt, &o.CreatedAt,
		&o.CompletedAt, &o.DonationVerified, &o.Archived, &archivedAt, &rating, &comment, &reviewedAt)
	if err != nil {
		return nil, err
	}
	o.ArchivedAt = timePtr(archivedAt)
	o.ReviewedAt = timePtr(reviewedAt)
	o.ReviewComment = comment.String
	if rating.Valid {
		v := int(rating.Int64)
		o.Rating = &v
	}
	o.Status = o.CurrentState()
	return o, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(kind, id)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
