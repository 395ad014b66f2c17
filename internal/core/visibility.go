package core

import (
	"slices"
	"sort"
	"time"
)

const (
	FilterAll       = "all"
	FilterMine      = "mine"
	FilterHousehold = "household"
)

// TransactionFilter narrows a viewer's transaction list. FilterBy is one of
// FilterAll, FilterMine, FilterHousehold or a member's user id.
type TransactionFilter struct {
	FilterBy string
	PayerID  string
	Type     TransactionType
	Category string
	From     time.Time
	To       time.Time
	// ShowMemberTransactions holds each member's opt-in to mutual visibility.
	ShowMemberTransactions map[string]bool
}

// IsHouseholdVisible reports whether every household member sees t.
func (t Transaction) IsHouseholdVisible() bool {
	return t.IsHouseholdExpense || t.Target == TargetHousehold
}

// VisibleTo reports whether viewerID may see t. Members see their own
// transactions, household ones, those explicitly shared with them, and other
// members' when both sides opted in.
func VisibleTo(t Transaction, viewerID string, showMember map[string]bool) bool {
	switch {
	case t.CreatedBy == viewerID:
		return true
	case t.IsHouseholdVisible():
		return true
	case slices.Contains(t.SharedWithUsers, viewerID):
		return true
	}
	return showMember[t.CreatedBy] && showMember[viewerID]
}

// FilterTransactions applies visibility and f, returning matches newest first.
func FilterTransactions(txs []Transaction, viewerID string, f TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if !VisibleTo(t, viewerID, f.ShowMemberTransactions) {
			continue
		}
		switch f.FilterBy {
		case "", FilterAll:
		case FilterMine:
			if t.CreatedBy != viewerID {
				continue
			}
		case FilterHousehold:
			if !t.IsHouseholdExpense {
				continue
			}
		default:
			if t.CreatedBy != f.FilterBy {
				continue
			}
		}
		if f.PayerID != "" && t.PayerID != f.PayerID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.Date.After(f.To) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
