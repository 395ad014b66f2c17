package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finhouse/internal/core"
)

const (
	headerUserID      = "X-User-ID"
	headerHouseholdID = "X-Household-ID"

	maxBodyBytes = 1 << 20
)

// requestError is a client mistake detected before reaching a service.
type requestError struct {
	status  int
	message string
	details []string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func invalidBody(details []string) error {
	return &requestError{status: http.StatusUnprocessableEntity, message: "request body does not match schema", details: details}
}

// caller identifies who is making the request. Authentication happens
// upstream; the headers are trusted.
type caller struct {
	UserID      string
	HouseholdID string
}

func callerFromRequest(r *http.Request, needHousehold bool) (caller, error) {
	c := caller{
		UserID:      strings.TrimSpace(r.Header.Get(headerUserID)),
		HouseholdID: strings.TrimSpace(r.Header.Get(headerHouseholdID)),
	}
	if c.UserID == "" {
		return caller{}, &requestError{status: http.StatusUnauthorized, message: "missing " + headerUserID + " header"}
	}
	if needHousehold && c.HouseholdID == "" {
		return caller{}, &requestError{status: http.StatusUnauthorized, message: "missing " + headerHouseholdID + " header"}
	}
	return c, nil
}

// decodeBody reads the body, validates it against the named schema and
// decodes it into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{status: http.StatusRequestEntityTooLarge, message: "request body too large"}
		}
		return badRequest("failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequest("request body is required")
	}
	if !json.Valid(body) {
		return badRequest("request body is not valid JSON")
	}
	details, err := s.schemas.validate(schema, body)
	if err != nil {
		return fmt.Errorf("validate %s body: %w", schema, err)
	}
	if len(details) > 0 {
		return invalidBody(details)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return badRequest("malformed %s body: %v", schema, err)
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates, the latter
// at midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// parseAmount converts a positive decimal string to Money.
func parseAmount(field, s string) (core.Money, error) {
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Money{}, &requestError{status: http.StatusUnprocessableEntity, message: fmt.Sprintf("invalid %s %q", field, s)}
	}
	return m, nil
}

// parseBalance is parseAmount for values that may be zero or negative.
func parseBalance(field, s string) (core.Money, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	if strings.Trim(digits, "0.,") == "" && digits != "" {
		return core.Money{}, nil
	}
	m, err := parseAmount(field, digits)
	if err != nil {
		return core.Money{}, err
	}
	if negative {
		m.Cents = -m.Cents
	}
	return m, nil
}

func parseSplitRules(in []splitRuleRequest) ([]core.SplitRule, error) {
	rules := make([]core.SplitRule, len(in))
	for i, r := range in {
		p, err := decimal.NewFromString(r.Percentage)
		if err != nil {
			return nil, &requestError{status: http.StatusUnprocessableEntity, message: fmt.Sprintf("invalid percentage %q", r.Percentage)}
		}
		rules[i] = core.SplitRule{UserID: r.UserID, Percentage: p}
	}
	return rules, nil
}

// ParseTransactionFilter reads the list filters from query parameters:
// filter, payer, type, category, from, to and members (comma separated ids of
// members sharing their transactions).
func ParseTransactionFilter(query url.Values, loc *time.Location) (core.TransactionFilter, error) {
	f := core.TransactionFilter{
		FilterBy: core.FilterAll,
		PayerID:  strings.TrimSpace(query.Get("payer")),
		Category: strings.TrimSpace(query.Get("category")),
	}
	if v := strings.TrimSpace(query.Get("filter")); v != "" {
		f.FilterBy = v
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		tt := core.TransactionType(v)
		if err := tt.Validate(); err != nil {
			return core.TransactionFilter{}, badRequest("invalid type %q", v)
		}
		f.Type = tt
	}
	if v := query.Get("from"); v != "" {
		t, err := parseDate(v, loc)
		if err != nil {
			return core.TransactionFilter{}, err
		}
		f.From = t
	}
	if v := query.Get("to"); v != "" {
		t, err := parseDate(v, loc)
		if err != nil {
			return core.TransactionFilter{}, err
		}
		f.To = t
	}
	if v := strings.TrimSpace(query.Get("members")); v != "" {
		f.ShowMemberTransactions = make(map[string]bool)
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.ShowMemberTransactions[id] = true
			}
		}
	}
	return f, nil
}

// parseBoolQuery returns the named boolean query parameter, or def when absent.
func parseBoolQuery(query url.Values, name string, def bool) (bool, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("invalid %s %q", name, v)
	}
	return b, nil
}
