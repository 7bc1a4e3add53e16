package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// topCategories bounds the digest size regardless of how many
// categories a user tracks
const topCategories = 8

// Service builds the per-user financial digest
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new finance digest service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "finance_service"),
	}
}

// BuildDigest assembles the bounded financial snapshot for a user.
// Any upstream failure surfaces as ErrUnavailable; the caller decides
// whether that aborts the turn.
func (s *Service) BuildDigest(ctx context.Context, userID string) (*Digest, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "load profile for %s: %v", userID, err)
	}

	month := time.Now().UTC()
	agg, err := s.repo.GetAggregates(ctx, userID, month)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// No records this month is a valid state, not a failure
			agg = &Aggregates{Month: month}
		} else {
			return nil, errors.Wrapf(errors.ErrUnavailable, "load aggregates for %s: %v", userID, err)
		}
	}

	digest := &Digest{
		Profile:     *profile,
		Aggregates:  *agg,
		Summary:     renderSummary(profile, agg),
		GeneratedAt: time.Now().UTC(),
	}

	s.log.Debugw("Built financial digest", "user", userID, "categories", len(agg.ByCategory))
	return digest, nil
}

// renderSummary formats the digest as compact text for LLM context
func renderSummary(p *Profile, a *Aggregates) string {
	var b strings.Builder

	cur := p.Currency
	if cur == "" {
		cur = "SEK"
	}

	fmt.Fprintf(&b, "User: %s (currency %s, timezone %s)\n", p.FullName, cur, p.Timezone)
	if p.HouseholdMembers > 0 {
		fmt.Fprintf(&b, "Household: %d members, %d vehicles, %s",
			p.HouseholdMembers, p.NumVehicles, p.HousingType)
		if p.HouseSizeSqm > 0 {
			fmt.Fprintf(&b, " (%.0f sqm)", p.HouseSizeSqm)
		}
		b.WriteString("\n")
	}
	if p.MonthlyIncomeGoal.IsPositive() {
		fmt.Fprintf(&b, "Monthly income goal: %s %s\n", money(p.MonthlyIncomeGoal), cur)
	}
	if p.MonthlySavingsGoal.IsPositive() {
		fmt.Fprintf(&b, "Monthly savings goal: %s %s\n", money(p.MonthlySavingsGoal), cur)
	}

	fmt.Fprintf(&b, "Month %s: spent %s %s, income %s %s, savings balance %s %s\n",
		a.Month.Format("2006-01"),
		money(a.TotalSpent), cur,
		money(a.TotalIncome), cur,
		money(a.SavingsBalance), cur,
	)

	if len(a.ByCategory) > 0 {
		b.WriteString("Top spending categories:\n")
		limit := len(a.ByCategory)
		if limit > topCategories {
			limit = topCategories
		}
		for _, c := range a.ByCategory[:limit] {
			fmt.Fprintf(&b, "- %s: %s %s\n", c.Category, money(c.Amount), cur)
		}
	}

	return b.String()
}

func money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return humanize.CommafWithDigits(f, 2)
}
