package http

import (
	"net/http"

	"finhouse/internal/core"
	"finhouse/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := s.decodeBody(w, r, schemaTransactionCreate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.newTransaction(c, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.svc.Transactions.Create(r.Context(), t, req.IsPaid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logAction(r, "Transaction created",
		log.NewFields().WithTransaction(created.ID, created.Amount.Cents).WithOperation(log.OpCreate).ToSlice()...)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+created.ID).
		Body(newTransactionResponse(created)).
		Write(w)
}

// newTransaction builds a transaction owned by the caller from a create body
// that already passed schema validation.
func (s *Server) newTransaction(c caller, req transactionRequest) (core.Transaction, error) {
	amount, err := parseAmount("amount", *req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(*req.Date, s.loc)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		HouseholdID: c.HouseholdID,
		Type:        core.TransactionType(*req.Type),
		Title:       *req.Title,
		Amount:      amount,
		Date:        date,
		CreatedBy:   c.UserID,
		PayerID:     c.UserID,
		Target:      core.Target(*req.Target),
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.Notes != nil {
		t.Notes = *req.Notes
	}
	if req.PayerID != nil && *req.PayerID != "" {
		t.PayerID = *req.PayerID
	}
	if req.SharedWith != nil {
		if t.SharedWith, err = parseSplitRules(*req.SharedWith); err != nil {
			return core.Transaction{}, err
		}
	}
	if req.IsHouseholdExpense != nil {
		t.IsHouseholdExpense = *req.IsHouseholdExpense
	}
	if req.SharedWithUsers != nil {
		t.SharedWithUsers = *req.SharedWithUsers
	}
	if pm, ok := req.payment(); ok {
		t.Payment = pm
	}
	return t, nil
}

// transactionPatch converts an update body into a sparse patch.
func (s *Server) transactionPatch(req transactionRequest) (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if req.Type != nil {
		tt := core.TransactionType(*req.Type)
		p.Type = &tt
	}
	p.Title = req.Title
	if req.Amount != nil {
		amount, err := parseAmount("amount", *req.Amount)
		if err != nil {
			return p, err
		}
		p.Amount = &amount
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date, s.loc)
		if err != nil {
			return p, err
		}
		p.Date = &date
	}
	p.Category = req.Category
	p.Notes = req.Notes
	p.PayerID = req.PayerID
	if req.Target != nil {
		target := core.Target(*req.Target)
		p.Target = &target
	}
	if req.SharedWith != nil {
		rules, err := parseSplitRules(*req.SharedWith)
		if err != nil {
			return p, err
		}
		p.SharedWith = &rules
	}
	p.IsHouseholdExpense = req.IsHouseholdExpense
	p.SharedWithUsers = req.SharedWithUsers
	if pm, ok := req.payment(); ok {
		p.Payment = &pm
	}
	p.IsPaid = req.IsPaid
	return p, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := ParseTransactionFilter(r.URL.Query(), s.loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txs, err := s.svc.Transactions.List(r.Context(), c.HouseholdID, c.UserID, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newTransactionResponses(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.svc.Transactions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newTransactionResponse(t)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := s.decodeBody(w, r, schemaTransactionUpdate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch, err := s.transactionPatch(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.svc.Transactions.Update(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Transaction updated",
		log.NewFields().WithTransaction(updated.ID, updated.Amount.Cents).WithOperation(log.OpUpdate).ToSlice()...)
	NewJSONResponse().Body(newTransactionResponse(updated)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Transactions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Transaction deleted", log.FieldTransaction, id, log.FieldOperation, log.OpDelete)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleTransactionSplit(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shares, err := s.svc.Transactions.Split(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]string, len(shares))
	for user, cents := range shares {
		out[user] = core.FormatCents(cents)
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := ParseTransactionFilter(r.URL.Query(), s.loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.svc.Transactions.Summary(r.Context(), c.HouseholdID, c.UserID, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newSummaryResponse(summary)).Write(w)
}
