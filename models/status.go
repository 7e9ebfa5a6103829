package models

// Transaction statuses. A transaction is created pending; completed,
// cancelled and failed are terminal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

var validNext = map[string]map[string]bool{
	StatusPending:   {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// ValidStatus reports whether s is one of the enumerated statuses.
func ValidStatus(s string) bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition reports whether a transaction may move from one status to
// another. Re-setting the current value is not a valid transition.
func CanTransition(from, to string) bool {
	return validNext[from][to]
}
