package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// BillPayments applies payments to bills. The account debit and the bill
// update commit together or not at all.
type BillPayments struct {
	repo *storage.Repository
	now  func() time.Time
}

func NewBillPayments(repo *storage.Repository, opts ...Option) *BillPayments {
	o := buildOptions(opts)
	return &BillPayments{repo: repo, now: o.now}
}

// PayBill debits amount from accountID and adds it to the bill's paid amount.
// The bill becomes paid once the paid amount reaches its total. Overpayment
// is recorded as is.
func (p *BillPayments) PayBill(ctx context.Context, billID, accountID string, amount core.Money) (core.Bill, error) {
	return p.pay(ctx, billID, accountID, amount, nil)
}

// PayBillChecked is PayBill that additionally rejects payments above what is
// still owed or above the account balance.
func (p *BillPayments) PayBillChecked(ctx context.Context, billID, accountID string, amount core.Money) (core.Bill, error) {
	return p.pay(ctx, billID, accountID, amount, ValidatePayment)
}

// ValidatePayment checks amount against the bill and the paying account.
func ValidatePayment(b core.Bill, a core.Account, amount core.Money) error {
	if amount.Cents <= 0 {
		return core.ErrInvalidAmount
	}
	if amount.Cents > b.Remaining().Cents {
		return fmt.Errorf("%w: remaining %s", core.ErrOverpayment, b.Remaining())
	}
	if amount.Cents > a.Balance.Cents {
		return fmt.Errorf("%w: balance %s", core.ErrInsufficientFunds, a.Balance)
	}
	return nil
}

func (p *BillPayments) pay(ctx context.Context, billID, accountID string, amount core.Money, check func(core.Bill, core.Account, core.Money) error) (core.Bill, error) {
	if amount.Cents <= 0 {
		return core.Bill{}, core.ErrInvalidAmount
	}
	if accountID == "" {
		return core.Bill{}, fmt.Errorf("%w: empty id", core.ErrAccountNotFound)
	}

	var paid core.Bill
	err := p.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		bill, err := tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(bill, account, amount); err != nil {
				return err
			}
		}

		if err := NewBalanceLedger(tx).Adjust(ctx, accountID, -amount.Cents); err != nil {
			return err
		}

		newPaid := bill.Paid.Add(amount)
		settled := newPaid.Cents >= bill.Total.Cents
		if err := tx.RecordBillPayment(ctx, billID, newPaid, settled, accountID, p.now()); err != nil {
			return err
		}

		paid, err = tx.GetBill(ctx, billID)
		return err
	})
	if err != nil {
		return core.Bill{}, fmt.Errorf("pay bill %s: %w", billID, err)
	}

	slog.InfoContext(ctx, "Recorded bill payment",
		"bill_id", billID,
		"account_id", accountID,
		"amount_cents", amount.Cents,
		"status", paid.Status)

	return paid, nil
}
