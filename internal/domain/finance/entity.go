package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Profile holds the user attributes the assistant personalizes on
type Profile struct {
	UserID             string
	FullName           string
	Currency           string
	Timezone           string
	HouseholdMembers   int
	NumVehicles        int
	HousingType        string
	HouseSizeSqm       float64
	MonthlyIncomeGoal  decimal.Decimal
	MonthlySavingsGoal decimal.Decimal
}

// CategorySpend is one category's total for a month
type CategorySpend struct {
	Category string
	Amount   decimal.Decimal
}

// Aggregates is the bounded monthly rollup handed to agents.
// Aggregated, never raw rows, to keep context payloads small.
type Aggregates struct {
	Month          time.Time
	TotalSpent     decimal.Decimal
	ByCategory     []CategorySpend
	TotalIncome    decimal.Decimal
	SavingsBalance decimal.Decimal
}

// Digest is the rendered financial snapshot for one user
type Digest struct {
	Profile     Profile
	Aggregates  Aggregates
	Summary     string
	GeneratedAt time.Time
}
