package domain

// MetricKey names one numeric operational metric.
type MetricKey string

const (
	MetricTotalTickets            MetricKey = "overview.totalTickets"
	MetricOpenTickets             MetricKey = "overview.openTickets"
	MetricResolvedTickets         MetricKey = "overview.resolvedTickets"
	MetricTicketsPerHour          MetricKey = "overview.ticketsPerHour"
	MetricAvgFirstResponseMinutes MetricKey = "overview.avgFirstResponseMinutes"
	MetricAvgResolutionMinutes    MetricKey = "overview.avgResolutionMinutes"
	MetricSatisfactionAverage     MetricKey = "overview.satisfaction.average"

	MetricFirstResponseCompliance MetricKey = "sla.firstResponseSLA.compliance"
	MetricResolutionCompliance    MetricKey = "sla.resolutionSLA.compliance"
	MetricBreachedTickets         MetricKey = "sla.breachedTickets"

	MetricAvailableAgents   MetricKey = "agents.available"
	MetricOverloadedAgents  MetricKey = "agents.overloaded"
	MetricAvgUtilization    MetricKey = "agents.avgUtilization"
	MetricMaxUtilization    MetricKey = "agents.maxUtilization"
	MetricAgentSatisfaction MetricKey = "agents.avgSatisfaction"

	MetricLiveOpenTickets       MetricKey = "live.openTickets"
	MetricLiveUnassignedTickets MetricKey = "live.unassignedTickets"
	MetricLiveUrgentOpenTickets MetricKey = "live.urgentOpenTickets"
	MetricLiveTicketsLastHour   MetricKey = "live.ticketsLastHour"
)

// MetricSource identifies which metrics provider call produces a key.
type MetricSource string

const (
	MetricSourceOverview MetricSource = "overview"
	MetricSourceSLA      MetricSource = "sla"
	MetricSourceAgents   MetricSource = "agents"
	MetricSourceLive     MetricSource = "live"
)

var metricCatalog = map[MetricKey]MetricSource{
	MetricTotalTickets:            MetricSourceOverview,
	MetricOpenTickets:             MetricSourceOverview,
	MetricResolvedTickets:         MetricSourceOverview,
	MetricTicketsPerHour:          MetricSourceOverview,
	MetricAvgFirstResponseMinutes: MetricSourceOverview,
	MetricAvgResolutionMinutes:    MetricSourceOverview,
	MetricSatisfactionAverage:     MetricSourceOverview,
	MetricFirstResponseCompliance: MetricSourceSLA,
	MetricResolutionCompliance:    MetricSourceSLA,
	MetricBreachedTickets:         MetricSourceSLA,
	MetricAvailableAgents:         MetricSourceAgents,
	MetricOverloadedAgents:        MetricSourceAgents,
	MetricAvgUtilization:          MetricSourceAgents,
	MetricMaxUtilization:          MetricSourceAgents,
	MetricAgentSatisfaction:       MetricSourceAgents,
	MetricLiveOpenTickets:         MetricSourceLive,
	MetricLiveUnassignedTickets:   MetricSourceLive,
	MetricLiveUrgentOpenTickets:   MetricSourceLive,
	MetricLiveTicketsLastHour:     MetricSourceLive,
}

// Source returns the provider call that yields k.
func (k MetricKey) Source() (MetricSource, bool) {
	s, ok := metricCatalog[k]
	return s, ok
}

// Valid reports whether k is a known metric.
func (k MetricKey) Valid() bool {
	_, ok := metricCatalog[k]
	return ok
}

// MetricSet is a flat key to value mapping returned by the metrics provider.
type MetricSet map[MetricKey]float64

// Merge copies every entry of other into m.
func (m MetricSet) Merge(other MetricSet) {
	for k, v := range other {
		m[k] = v
	}
}
