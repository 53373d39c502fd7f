// Package eventaction represents the action carried by an upstream push
// event. Create and update share the same upsert path so out-of-order
// delivery converges.
package eventaction

import "fmt"

// The set of actions an event may carry.
var (
	Create = newAction("create")
	Update = newAction("update")
	Remove = newAction("remove")
)

// =============================================================================

// Set of known actions.
var acts = make(map[string]Action)

// Action represents an event action in the system.
type Action struct {
	value string
}

func newAction(action string) Action {
	a := Action{action}
	acts[action] = a
	return a
}

// String returns the name of the action.
func (a Action) String() string {
	return a.value
}

// Equal provides support for the go-cmp package and testing.
func (a Action) Equal(a2 Action) bool {
	return a.value == a2.value
}

// MarshalText provides support for logging and any marshal needs.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.value), nil
}

// =============================================================================

// Parse parses the string value and returns an action if one exists.
func Parse(value string) (Action, error) {
	action, exists := acts[value]
	if !exists {
		return Action{}, fmt.Errorf("unknown event action %q", value)
	}

	return action, nil
}

// MustParse parses the string value and returns an action if one exists. If
// an error occurs the function panics.
func MustParse(value string) Action {
	action, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return action
}
