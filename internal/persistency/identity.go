package persistency

import "fmt"

// Identity names one stored record by (collection, identifier). Both fields
// are compared exactly and case-sensitively; "London" and "london" address
// distinct records.
type Identity struct {
	Collection string
	Identifier string
}

func NewIdentity(collection, identifier string) Identity {
	return Identity{Collection: collection, Identifier: identifier}
}

func (i Identity) String() string {
	return i.Collection + "/" + i.Identifier
}

func (i Identity) Validate() error {
	if i.Collection == "" {
		return fmt.Errorf("%w: collection is empty", ErrInvalidIdentity)
	}
	if i.Identifier == "" {
		return fmt.Errorf("%w: identifier is empty", ErrInvalidIdentity)
	}
	return nil
}
