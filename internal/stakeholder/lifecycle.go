package stakeholder

// Status is the lifecycle state of a stakeholder.
type Status string

const (
	StatusCreated  Status = "created"
	StatusEngaged  Status = "engaged"
	StatusActive   Status = "active"
	StatusDormant  Status = "dormant"
	StatusArchived Status = "archived"
)

// Statuses lists every lifecycle state in lifecycle order.
var Statuses = []Status{
	StatusCreated,
	StatusEngaged,
	StatusActive,
	StatusDormant,
	StatusArchived,
}

// transitions maps a state to the states reachable from it. archived is terminal.
var transitions = map[Status]map[Status]struct{}{
	StatusCreated:  {StatusEngaged: {}, StatusArchived: {}},
	StatusEngaged:  {StatusActive: {}, StatusDormant: {}, StatusArchived: {}},
	StatusActive:   {StatusDormant: {}, StatusArchived: {}},
	StatusDormant:  {StatusActive: {}, StatusArchived: {}},
	StatusArchived: {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from → to is in the transition table. A
// status never transitions to itself.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// AllowedTransitions returns the successors of from in lifecycle order.
func AllowedTransitions(from Status) []Status {
	next := transitions[from]
	out := make([]Status, 0, len(next))
	for _, s := range Statuses {
		if _, ok := next[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
