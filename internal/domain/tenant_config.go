package domain

import (
	"strconv"
	"strings"
	"time"
)

// BusinessHours describes the staffed window of a tenant.
type BusinessHours struct {
	Timezone string `json:"timezone" yaml:"timezone"`
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Days     []int  `json:"days" yaml:"days"`
}

// Contains reports whether t falls inside the window. An unset window is always open.
func (b BusinessHours) Contains(t time.Time) bool {
	if b.Start == "" || b.End == "" {
		return true
	}
	loc := time.UTC
	if b.Timezone != "" {
		if l, err := time.LoadLocation(b.Timezone); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	if len(b.Days) > 0 {
		found := false
		for _, d := range b.Days {
			if time.Weekday(d) == local.Weekday() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	start, okStart := clockMinutes(b.Start)
	end, okEnd := clockMinutes(b.End)
	if !okStart || !okEnd {
		return true
	}
	now := local.Hour()*60 + local.Minute()
	return now >= start && now < end
}

func clockMinutes(hhmm string) (int, bool) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// RateLimits bounds ticket creation per requester.
type RateLimits struct {
	MaxTicketsPerHour int `json:"max_tickets_per_hour" yaml:"max_tickets_per_hour"`
	MaxTicketsPerDay  int `json:"max_tickets_per_day" yaml:"max_tickets_per_day"`
}

// TenantConfig is the resolved configuration for one (business model, tenant) pair.
type TenantConfig struct {
	Scope             Scope
	SLAMinutes        SLAMinutes
	AutoAssign        bool
	EscalationEnabled bool
	EscalationRoles   []Role
	BusinessHours     BusinessHours
	RateLimits        RateLimits
	UpdatedAt         time.Time
}
