package domain

import "time"

// ResolutionSLAMultiplier is the fixed ratio between the resolution window and
// the first-response window of a priority.
const ResolutionSLAMultiplier = 4

// SLAMinutes maps each priority to its first-response budget in minutes.
type SLAMinutes map[TicketPriority]int

// For returns the first-response minutes configured for p.
func (m SLAMinutes) For(p TicketPriority) (int, bool) {
	v, ok := m[p]
	return v, ok && v > 0
}

// SLARecord is owned one-to-one by a ticket.
type SLARecord struct {
	TicketID             string
	FirstResponseMinutes int
	ResolutionMinutes    int
	FirstResponseDue     time.Time
	ResolutionDue        time.Time
	FirstResponseMet     bool
	ResolutionMet        bool
	FirstResponseBreach  bool
	ResolutionBreach     bool
	BreachMinutes        int
	UpdatedAt            time.Time
}
