package models

// ValidationResult is the outcome of validating condition and effect trees.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: append([]string(nil), r.Errors...)}
}
