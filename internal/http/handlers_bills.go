package http

import (
	"net/http"

	"finhouse/internal/log"
)

func (s *Server) handleCurrentBills(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bills, err := s.svc.Billing.CurrentBills(r.Context(), c.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newBillResponses(bills, s.now())).Write(w)
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := s.decodeBody(w, r, schemaBillPayment, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	bill, err := s.svc.Billing.Pay(r.Context(), id, req.AccountID, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Bill payment applied",
		log.NewFields().WithBill(bill.ID, bill.CreditCardID, amount.Cents).WithOperation(log.OpPay).ToSlice()...)
	NewJSONResponse().Body(newBillResponse(bill, s.now())).Write(w)
}

func (s *Server) handleCloseBill(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bill, err := s.svc.Billing.CloseBill(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Bill closed", log.FieldBillID, bill.ID, log.FieldOperation, log.OpClose)
	NewJSONResponse().Body(newBillResponse(bill, s.now())).Write(w)
}
