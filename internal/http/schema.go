package http

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names, one per request body kind.
const (
	schemaTransactionCreate = "transaction_create"
	schemaTransactionUpdate = "transaction_update"
	schemaAccountCreate     = "account_create"
	schemaAccountUpdate     = "account_update"
	schemaCardCreate        = "card_create"
	schemaCardUpdate        = "card_update"
	schemaBillPayment       = "bill_payment"
)

// schemaSet holds the compiled request body schemas.
type schemaSet map[string]*gojsonschema.Schema

func loadSchemas() (schemaSet, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	set := make(schemaSet, len(entries))
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		set[strings.TrimSuffix(e.Name(), ".json")] = schema
	}
	return set, nil
}

// validate checks body against the named schema and returns one message per
// violation.
func (s schemaSet) validate(name string, body []byte) ([]string, error) {
	schema, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if res.Valid() {
		return nil, nil
	}
	details := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		details = append(details, e.String())
	}
	return details, nil
}
