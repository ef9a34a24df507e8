package validation

import (
	"fmt"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema compiles schema once and returns a rule validating response
// bodies against it.
func JSONSchema(schema []byte) (http.Validation, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}

	return func(_ *http.Request, resp *http.Response) error {
		result, err := compiled.Validate(gojsonschema.NewBytesLoader(resp.Body))
		if err != nil {
			return &http.ValidationError{Rule: "schema", Reason: "schema validation error", Err: err}
		}
		if result.Valid() {
			return nil
		}

		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return http.Reject("schema", "schema validation failed: %s", strings.Join(errs, "; "))
	}, nil
}

// JSONSchemaFile reads a schema from path and compiles it.
func JSONSchemaFile(path string) (http.Validation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return JSONSchema(data)
}
