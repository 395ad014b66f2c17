package core

// PaymentKind tags which instrument, if any, settled a transaction.
type PaymentKind int

const (
	PaymentNone PaymentKind = iota
	PaymentAccount
	PaymentCreditCard
)

func (k PaymentKind) String() string {
	switch k {
	case PaymentAccount:
		return "account"
	case PaymentCreditCard:
		return "credit_card"
	default:
		return "none"
	}
}

// PaymentMethod links a transaction to at most one bank account or one credit
// card. The zero value is PaymentNone.
type PaymentMethod struct {
	kind PaymentKind
	id   string
}

func NoPayment() PaymentMethod { return PaymentMethod{} }

func AccountPayment(accountID string) PaymentMethod {
	return PaymentMethod{kind: PaymentAccount, id: accountID}
}

func CardPayment(cardID string) PaymentMethod {
	return PaymentMethod{kind: PaymentCreditCard, id: cardID}
}

func (p PaymentMethod) Kind() PaymentKind { return p.kind }

// ID returns the linked account or card id, empty for PaymentNone.
func (p PaymentMethod) ID() string { return p.id }

func (p PaymentMethod) AccountID() (string, bool) {
	if p.kind != PaymentAccount {
		return "", false
	}
	return p.id, true
}

func (p PaymentMethod) CreditCardID() (string, bool) {
	if p.kind != PaymentCreditCard {
		return "", false
	}
	return p.id, true
}

func (p PaymentMethod) Validate() error {
	switch p.kind {
	case PaymentNone:
		if p.id != "" {
			return ErrInvalidPayment
		}
	case PaymentAccount, PaymentCreditCard:
		if p.id == "" {
			return ErrInvalidPayment
		}
	default:
		return ErrInvalidPayment
	}
	return nil
}

func (p PaymentMethod) String() string {
	if p.kind == PaymentNone {
		return "none"
	}
	return p.kind.String() + ":" + p.id
}
