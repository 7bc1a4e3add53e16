package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/finance"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// FinanceRepository reads profile and aggregate data from Postgres.
// All queries are read-only; the assistant never mutates financial
// records.
type FinanceRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewFinanceRepository creates a Postgres-backed finance repository
func NewFinanceRepository(db *sqlx.DB) *FinanceRepository {
	return &FinanceRepository{
		db:  db,
		log: logger.Get().With("component", "finance_repository"),
	}
}

// Compile-time check that we implement the interface
var _ finance.Repository = (*FinanceRepository)(nil)

type profileRow struct {
	UserID             string          `db:"user_id"`
	FullName           string          `db:"full_name"`
	Currency           string          `db:"currency"`
	Timezone           string          `db:"timezone"`
	HouseholdMembers   int             `db:"household_members"`
	NumVehicles        int             `db:"num_vehicles"`
	HousingType        string          `db:"housing_type"`
	HouseSizeSqm       float64         `db:"house_size_sqm"`
	MonthlyIncomeGoal  decimal.Decimal `db:"monthly_income_goal"`
	MonthlySavingsGoal decimal.Decimal `db:"monthly_savings_goal"`
}

// GetProfile loads the user's profile attributes
func (r *FinanceRepository) GetProfile(ctx context.Context, userID string) (*finance.Profile, error) {
	query := `
		SELECT
			id AS user_id,
			COALESCE(full_name, '') AS full_name,
			COALESCE(preferred_currency, 'SEK') AS currency,
			COALESCE(timezone, 'Europe/Stockholm') AS timezone,
			COALESCE(household_members, 1) AS household_members,
			COALESCE(num_vehicles, 0) AS num_vehicles,
			COALESCE(housing_type, '') AS housing_type,
			COALESCE(house_size_sqm, 0) AS house_size_sqm,
			COALESCE(monthly_income_goal, 0) AS monthly_income_goal,
			COALESCE(monthly_savings_goal, 0) AS monthly_savings_goal
		FROM users
		WHERE id = $1`

	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "user %s", userID)
		}
		return nil, errors.Wrapf(err, "get profile for user %s", userID)
	}

	return &finance.Profile{
		UserID:             row.UserID,
		FullName:           row.FullName,
		Currency:           row.Currency,
		Timezone:           row.Timezone,
		HouseholdMembers:   row.HouseholdMembers,
		NumVehicles:        row.NumVehicles,
		HousingType:        row.HousingType,
		HouseSizeSqm:       row.HouseSizeSqm,
		MonthlyIncomeGoal:  row.MonthlyIncomeGoal,
		MonthlySavingsGoal: row.MonthlySavingsGoal,
	}, nil
}

type categorySpendRow struct {
	Category string          `db:"category"`
	Amount   decimal.Decimal `db:"amount"`
}

// GetAggregates computes the monthly rollup for the user. The month
// argument is normalized to its first day; any day within the month
// selects the same window.
func (r *FinanceRepository) GetAggregates(ctx context.Context, userID string, month time.Time) (*finance.Aggregates, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	agg := &finance.Aggregates{Month: from}

	spendQuery := `
		SELECT COALESCE(c.name, 'uncategorized') AS category,
		       COALESCE(SUM(e.amount), 0) AS amount
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = $1 AND e.date >= $2 AND e.date < $3
		GROUP BY c.name
		ORDER BY amount DESC`

	var rows []categorySpendRow
	if err := r.db.SelectContext(ctx, &rows, spendQuery, userID, from, to); err != nil {
		return nil, errors.Wrapf(err, "get category spend for user %s", userID)
	}

	for _, row := range rows {
		agg.ByCategory = append(agg.ByCategory, finance.CategorySpend{
			Category: row.Category,
			Amount:   row.Amount,
		})
		agg.TotalSpent = agg.TotalSpent.Add(row.Amount)
	}

	incomeQuery := `
		SELECT COALESCE(SUM(amount), 0)
		FROM monthly_incomes
		WHERE user_id = $1 AND month >= $2 AND month < $3`

	if err := r.db.GetContext(ctx, &agg.TotalIncome, incomeQuery, userID, from, to); err != nil {
		return nil, errors.Wrapf(err, "get income for user %s", userID)
	}

	savingsQuery := `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM savings_transactions t
		JOIN savings_accounts a ON a.id = t.account_id
		WHERE a.user_id = $1 AND t.date < $2`

	if err := r.db.GetContext(ctx, &agg.SavingsBalance, savingsQuery, userID, to); err != nil {
		return nil, errors.Wrapf(err, "get savings balance for user %s", userID)
	}

	if len(agg.ByCategory) == 0 && agg.TotalIncome.IsZero() && agg.SavingsBalance.IsZero() {
		return nil, errors.Wrapf(errors.ErrNotFound, "no records for user %s in %s", userID, from.Format("2006-01"))
	}

	r.log.Debugw("Loaded aggregates", "user", userID, "month", from.Format("2006-01"), "categories", len(agg.ByCategory))
	return agg, nil
}
