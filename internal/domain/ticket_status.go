package domain

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:          {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress:    {TicketStatusPendingUser, TicketStatusResolved, TicketStatusEscalated},
	TicketStatusPendingUser:   {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusPendingVendor: {TicketStatusInProgress, TicketStatusEscalated},
	TicketStatusEscalated:     {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusResolved:      {TicketStatusClosed, TicketStatusOpen},
	TicketStatusClosed:        {},
}

// CanTransition reports whether a ticket may move from current to next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from current.
func AllowedTransitions(current TicketStatus) []TicketStatus {
	out := make([]TicketStatus, len(allowedTransitions[current]))
	copy(out, allowedTransitions[current])
	return out
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}
