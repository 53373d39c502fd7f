// Package entitykind represents the set of upstream entity kinds mirrored
// by the system. Webhook routing dispatches on this closed set; payload
// types outside it are skipped rather than treated as errors.
package entitykind

import "fmt"

// The set of entity kinds the mirror tracks.
var (
	Team       = newKind("Team")
	Project    = newKind("Project")
	Initiative = newKind("Initiative")
	Issue      = newKind("Issue")
	Comment    = newKind("Comment")
)

// =============================================================================

// Set of known kinds.
var kinds = make(map[string]Kind)

// Kind represents an upstream entity kind.
type Kind struct {
	value string
}

func newKind(kind string) Kind {
	k := Kind{kind}
	kinds[kind] = k
	return k
}

// String returns the name of the kind.
func (k Kind) String() string {
	return k.value
}

// Equal provides support for the go-cmp package and testing.
func (k Kind) Equal(k2 Kind) bool {
	return k.value == k2.value
}

// MarshalText provides support for logging and any marshal needs.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.value), nil
}

// =============================================================================

// Parse parses the string value and returns a kind if one exists.
func Parse(value string) (Kind, error) {
	kind, exists := kinds[value]
	if !exists {
		return Kind{}, fmt.Errorf("unknown entity kind %q", value)
	}

	return kind, nil
}

// MustParse parses the string value and returns a kind if one exists. If
// an error occurs the function panics.
func MustParse(value string) Kind {
	kind, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return kind
}
