// package models defines the data model for the bookmark sync service
package models

// Validator is implemented by every model that can check its own invariants.
type Validator interface {
	Validate() error
}
