package http

import (
	"net/http"

	"finhouse/internal/core"
	"finhouse/internal/log"
)

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req accountRequest
	if err := s.decodeBody(w, r, schemaAccountCreate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	a := core.Account{
		HouseholdID: c.HouseholdID,
		OwnerID:     c.UserID,
		Name:        *req.Name,
		Type:        core.AccountType(*req.Type),
		Active:      true,
	}
	if req.InitialBalance != nil {
		if a.InitialBalance, err = parseBalance("initialBalance", *req.InitialBalance); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Color != nil {
		a.Color = *req.Color
	}
	if req.Icon != nil {
		a.Icon = *req.Icon
	}

	created, err := s.svc.Accounts.Create(r.Context(), a)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Account created", log.FieldAccountID, created.ID, log.FieldAmountCents, created.Balance.Cents)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/accounts/"+created.ID).
		Body(newAccountResponse(created)).
		Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	all, err := parseBoolQuery(r.URL.Query(), "all", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	accounts, err := s.svc.Accounts.List(r.Context(), c.UserID, !all)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		out[i] = newAccountResponse(a)
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.svc.Accounts.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newAccountResponse(a)).Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req accountRequest
	if err := s.decodeBody(w, r, schemaAccountUpdate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p := core.AccountPatch{
		Name:   req.Name,
		Color:  req.Color,
		Icon:   req.Icon,
		Active: req.IsActive,
	}
	if req.Type != nil {
		t := core.AccountType(*req.Type)
		p.Type = &t
	}
	if req.InitialBalance != nil {
		balance, err := parseBalance("initialBalance", *req.InitialBalance)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		p.InitialBalance = &balance
	}

	updated, err := s.svc.Accounts.Update(r.Context(), id, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newAccountResponse(updated)).Write(w)
}

func (s *Server) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Accounts.Deactivate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Account deactivated", log.FieldAccountID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
