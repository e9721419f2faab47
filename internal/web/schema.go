package web

import (
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/setup_request.json
var schemaFS embed.FS

var (
	setupSchemaOnce sync.Once
	setupSchema     *gojsonschema.Schema
	setupSchemaErr  error
)

// validateSetupRequest checks the raw request body against the setup
// request schema before anything touches a platform API.
func validateSetupRequest(body []byte) error {
	setupSchemaOnce.Do(func() {
		raw, err := schemaFS.ReadFile("schemas/setup_request.json")
		if err != nil {
			setupSchemaErr = err
			return
		}
		setupSchema, setupSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	})
	if setupSchemaErr != nil {
		return setupSchemaErr
	}
	result, err := setupSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	if len(result.Errors()) == 0 {
		return errors.New("request validation failed")
	}
	return fmt.Errorf("request validation failed: %s", result.Errors()[0].String())
}
