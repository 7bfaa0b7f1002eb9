// internal/browser/dom/errors.go
package dom

import "fmt"

// ElementNotFoundError reports a selector that matched nothing.
type ElementNotFoundError struct {
	Selector string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found matching selector '%s'", e.Selector)
}

// InvalidSelectorError reports a selector that could not be parsed or compiled.
type InvalidSelectorError struct {
	Selector string
	Err      error
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid selector '%s': %v", e.Selector, e.Err)
}

// Unwrap exposes the underlying parse error.
func (e *InvalidSelectorError) Unwrap() error { return e.Err }
