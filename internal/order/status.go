package order

// transitions is the lifecycle table: for each state, the set of states
// an order may move to. completed and cancelled are terminal.
var transitions = map[string]map[string]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

func IsTerminal(s string) bool {
	return len(transitions[s]) == 0 && ValidStatus(s)
}

func CanTransition(from, to string) bool {
	return transitions[from][to]
}
