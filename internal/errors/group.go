package errors

import (
	"fmt"
)

// Group accumulates independent errors so that one failure does not
// prevent reporting the others.
type Group []error

func (group Group) Error() string {
	return fmt.Sprintf("error group: %d errors", group.Len())
}

func (group Group) Unwrap() []error {
	return group
}

func (group Group) Len() int {
	return len(group)
}

// Add appends err to the group and returns the updated group. A nil err is
// ignored.
func (group Group) Add(err error) Group {
	if err == nil {
		return group
	}

	return append(group, err)
}

// ErrOrNil returns the group as an error, or nil if the group is empty.
func (group Group) ErrOrNil() error {
	if group.Len() == 0 {
		return nil
	}

	return group
}
