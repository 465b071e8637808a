// Package validate defines the schema-validation adapter interface the
// validation plugin is built against. wsrouter does not depend on any
// specific schema library; wsrouter/validate/structvalidator is one
// reference implementation, built on Go struct tags.
package validate

// Issue describes one field-level validation failure.
type Issue struct {
	Path    string
	Message string
}

// ParseResult is the outcome of validating raw JSON against a schema.
type ParseResult struct {
	Ok     bool
	Issues []Issue
}

// Adapter validates inbound/outbound payloads against registered schemas.
type Adapter interface {
	// MessageType returns the wire type string a schema instance
	// represents.
	MessageType(schemaInstance any) string
	// SafeParse validates data against schemaInstance's shape. It never
	// panics or returns an error for invalid input; invalidity is
	// communicated through ParseResult.Ok/Issues.
	SafeParse(schemaInstance any, data []byte) ParseResult
}
