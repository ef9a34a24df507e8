// Package validation provides response acceptance rules for the executor.
//
// Supported rules:
//   - Status code ranges (StatusRange, StatusCode)
//   - Content type checks (ContentType)
//   - Body content checks (BodyContains, BodyMatches)
//   - JSON path lookups (JSONField, JSONExists)
//   - JSON Schema validation (JSONSchema, JSONSchemaFile)
//   - Latency ceilings (MaxDuration)
//
// Every rule is an http.Validation; rejections are *http.ValidationError
// values naming the rule that failed.
package validation
