// Package validation wraps go-playground/validator for request payloads and
// configuration sections. Failures come back as INVALID_INPUT application
// errors whose message names the offending fields by their json (or
// mapstructure) tag.
//
//	type AnalyzeRequest struct {
//	    URL string `json:"url" validate:"required,http_url"`
//	}
//	if err := validation.Validate(req); err != nil { ... }
package validation
