package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSplit = errors.New("invalid split rules")

	hundred        = decimal.NewFromInt(100)
	splitTolerance = decimal.NewFromFloat(0.01)
)

// ValidateSplitRules checks that at least one member is selected, every
// percentage is positive and together they sum to 100.
func ValidateSplitRules(rules []SplitRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: at least one member must be selected", ErrInvalidSplit)
	}
	total := decimal.Zero
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.UserID == "" {
			return fmt.Errorf("%w: empty user id", ErrInvalidSplit)
		}
		if seen[r.UserID] {
			return fmt.Errorf("%w: duplicate member %s", ErrInvalidSplit, r.UserID)
		}
		seen[r.UserID] = true
		if !r.Percentage.IsPositive() {
			return fmt.Errorf("%w: percentages must be greater than zero", ErrInvalidSplit)
		}
		total = total.Add(r.Percentage)
	}
	if total.Sub(hundred).Abs().GreaterThan(splitTolerance) {
		return fmt.Errorf("%w: percentages sum to %s, want 100", ErrInvalidSplit, total.String())
	}
	return nil
}

// EqualSplit divides 100% between users in two-decimal shares. The rounding
// remainder goes to the first user so the shares always sum to exactly 100.
func EqualSplit(userIDs []string) []SplitRule {
	if len(userIDs) == 0 {
		return nil
	}
	share := hundred.Div(decimal.NewFromInt(int64(len(userIDs)))).Truncate(2)
	rest := hundred.Sub(share.Mul(decimal.NewFromInt(int64(len(userIDs)))))
	rules := make([]SplitRule, len(userIDs))
	for i, id := range userIDs {
		rules[i] = SplitRule{UserID: id, Percentage: share}
	}
	rules[0].Percentage = rules[0].Percentage.Add(rest)
	return rules
}

// ShareCents is the part of amount corresponding to percentage, rounded
// half away from zero to whole cents.
func ShareCents(amount Money, percentage decimal.Decimal) int64 {
	return decimal.NewFromInt(amount.Cents).Mul(percentage).Div(hundred).Round(0).IntPart()
}

// CalculateSplit returns each member's position in a shared transaction in
// cents. For expenses the payer is owed (negative) and the others owe
// (positive); income inverts the signs. Non-shared transactions yield an
// empty map.
func CalculateSplit(t Transaction) map[string]int64 {
	splits := make(map[string]int64)
	if t.Target != TargetShared || len(t.SharedWith) == 0 {
		return splits
	}
	for _, rule := range t.SharedWith {
		share := ShareCents(t.Amount, rule.Percentage)
		isPayer := rule.UserID == t.PayerID
		if (t.Type == Expense) == isPayer {
			share = -share
		}
		splits[rule.UserID] += share
	}
	return splits
}
