package http

import (
	"net/http"

	"finhouse/internal/core"
	"finhouse/internal/log"
)

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req cardRequest
	if err := s.decodeBody(w, r, schemaCardCreate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	limit, err := parseBalance("limit", *req.Limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	card := core.CreditCard{
		HouseholdID: c.HouseholdID,
		OwnerID:     c.UserID,
		Name:        *req.Name,
		LastFour:    *req.LastFour,
		Limit:       limit,
		ClosingDay:  *req.ClosingDay,
		DueDay:      *req.DueDay,
		Active:      true,
	}
	if req.Color != nil {
		card.Color = *req.Color
	}
	if req.Icon != nil {
		card.Icon = *req.Icon
	}

	created, err := s.svc.Cards.Create(r.Context(), card)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Credit card created", log.FieldCardID, created.ID)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/cards/"+created.ID).
		Body(newCardResponse(created)).
		Write(w)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
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
	cards, err := s.svc.Cards.List(r.Context(), c.UserID, !all)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]cardResponse, len(cards))
	for i, card := range cards {
		out[i] = newCardResponse(card)
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := s.svc.Cards.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newCardResponse(card)).Write(w)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req cardRequest
	if err := s.decodeBody(w, r, schemaCardUpdate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p := core.CardPatch{
		Name:       req.Name,
		LastFour:   req.LastFour,
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
		Color:      req.Color,
		Icon:       req.Icon,
		Active:     req.IsActive,
	}
	if req.Limit != nil {
		limit, err := parseBalance("limit", *req.Limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		p.Limit = &limit
	}

	updated, err := s.svc.Cards.Update(r.Context(), id, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newCardResponse(updated)).Write(w)
}

// handleDeactivateCard hides the card. Its bills and transactions stay.
func (s *Server) handleDeactivateCard(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFromRequest(r, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	inactive := false
	if _, err := s.svc.Cards.Update(r.Context(), id, core.CardPatch{Active: &inactive}); err != nil {
		s.writeError(w, r, err)
		return
	}
	logAction(r, "Credit card deactivated", log.FieldCardID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleCardSnapshot materializes the caller's running bill for the card if
// needed and reports it with the remaining credit.
func (s *Server) handleCardSnapshot(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.svc.Billing.CardSnapshot(r.Context(), id, c.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newCardSnapshotResponse(snap, s.now())).Write(w)
}

func (s *Server) handleCardBills(w http.ResponseWriter, r *http.Request) {
	c, err := callerFromRequest(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bills, err := s.svc.Billing.Bills(r.Context(), id, c.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newBillResponses(bills, s.now())).Write(w)
}
