package core

// Flow is income against expenses over a set of transactions.
type Flow struct {
	Income   Money
	Expenses Money
}

// Net is income minus expenses.
func (f Flow) Net() Money { return f.Income.Sub(f.Expenses) }

func (f *Flow) add(tt TransactionType, cents int64) {
	if tt == Income {
		f.Income.Cents += cents
	} else {
		f.Expenses.Cents += cents
	}
}

// BalanceSummary splits a member's view of the household finances.
type BalanceSummary struct {
	Personal  Flow
	Household Flow
	Total     Flow
}

// CalculateBalance summarizes transactions from userID's point of view:
// personal transactions they paid, household transactions, and their own
// share of shared ones.
func CalculateBalance(transactions []Transaction, userID string) BalanceSummary {
	var s BalanceSummary
	for _, t := range transactions {
		switch {
		case t.Target == TargetPersonal && t.PayerID == userID:
			s.Personal.add(t.Type, t.Amount.Cents)
		case t.Target == TargetHousehold:
			s.Household.add(t.Type, t.Amount.Cents)
		case t.Target == TargetShared:
			for _, rule := range t.SharedWith {
				if rule.UserID == userID {
					s.Personal.add(t.Type, ShareCents(t.Amount, rule.Percentage))
					break
				}
			}
		}
	}
	s.Total = Flow{
		Income:   s.Personal.Income.Add(s.Household.Income),
		Expenses: s.Personal.Expenses.Add(s.Household.Expenses),
	}
	return s
}
