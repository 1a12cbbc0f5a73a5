package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/havenlab/apiserver/types"
)

// ExpenseRepository handles persistence for operating expenses.
type ExpenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// ListBetween returns expenses with spent_at inside [from, to), oldest first.
func (r *ExpenseRepository) ListBetween(ctx context.Context, from, to time.Time) ([]types.Expense, error) {
	const query = `
		SELECT id, category, description, amount_cents, spent_at, recorded_by, created_at
		FROM expenses
		WHERE spent_at >= $1 AND spent_at < $2
		ORDER BY spent_at`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []types.Expense
	for rows.Next() {
		var expense types.Expense
		if err := rows.Scan(
			&expense.ID,
			&expense.Category,
			&expense.Description,
			&expense.AmountCents,
			&expense.SpentAt,
			&expense.RecordedBy,
			&expense.CreatedAt,
		); err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

func (r *ExpenseRepository) Get(ctx context.Context, id int) (types.Expense, error) {
	const query = `
		SELECT id, category, description, amount_cents, spent_at, recorded_by, created_at
		FROM expenses
		WHERE id = $1`
	var expense types.Expense
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&expense.ID,
		&expense.Category,
		&expense.Description,
		&expense.AmountCents,
		&expense.SpentAt,
		&expense.RecordedBy,
		&expense.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Expense{}, ErrNotFound
		}
		return types.Expense{}, err
	}
	return expense, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, expense types.Expense) (types.Expense, error) {
	expense.CreatedAt = time.Now()
	if expense.SpentAt.IsZero() {
		expense.SpentAt = expense.CreatedAt
	}

	const query = `
		INSERT INTO expenses (category, description, amount_cents, spent_at, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		expense.Category,
		expense.Description,
		expense.AmountCents,
		expense.SpentAt,
		expense.RecordedBy,
		expense.CreatedAt,
	).Scan(&expense.ID); err != nil {
		return types.Expense{}, err
	}
	return expense, nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM expenses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
