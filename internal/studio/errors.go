package studio

import "fmt"

// ValidationError reports a rejected user input before any network call
// is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// NotFoundError reports an entity that vanished between refresh and
// action, e.g. an order accepted from a stale list.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// SelectionRequiredError reports an export or transition attempted with
// nothing selected.
type SelectionRequiredError struct {
	What string
}

func (e SelectionRequiredError) Error() string {
	return fmt.Sprintf("no %s selected", e.What)
}
