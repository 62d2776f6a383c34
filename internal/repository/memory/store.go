// Package memory is an in-process implementation of the repository contracts,
// used when no database is configured and by service tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type heldKey struct{}

// Store holds every table behind one mutex. WithinTx keeps the mutex for the
// whole callback and restores a snapshot when the callback fails.
type Store struct {
	mu sync.Mutex

	ticketSeq     int64
	tickets       map[string]domain.Ticket
	sla           map[string]domain.SLARecord
	agents        map[string]domain.AgentProfile
	messages      map[string][]domain.TicketMessage
	attachments   map[string][]domain.AttachmentReference
	history       map[string][]domain.TicketHistory
	tenantConfigs map[string]domain.TenantConfig
	alertRules    map[string]domain.AlertRule
	alertHistory  map[string]domain.ActiveAlert
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tickets:       map[string]domain.Ticket{},
		sla:           map[string]domain.SLARecord{},
		agents:        map[string]domain.AgentProfile{},
		messages:      map[string][]domain.TicketMessage{},
		attachments:   map[string][]domain.AttachmentReference{},
		history:       map[string][]domain.TicketHistory{},
		tenantConfigs: map[string]domain.TenantConfig{},
		alertRules:    map[string]domain.AlertRule{},
		alertHistory:  map[string]domain.ActiveAlert{},
	}
}

// NewRepositories returns a fresh store exposed through the repository contracts.
func NewRepositories() (*repository.Repositories, *Store) {
	s := NewStore()
	return s.Repositories(), s
}

// Repositories exposes s through the repository contracts.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Transactor:    s,
		Tickets:       &ticketRepo{s},
		SLA:           &slaRepo{s},
		Agents:        &agentRepo{s},
		Messages:      &messageRepo{s},
		Attachments:   &attachmentRepo{s},
		History:       &historyRepo{s},
		TenantConfigs: &tenantConfigRepo{s},
		AlertRules:    &alertRuleRepo{s},
		AlertHistory:  &alertHistoryRepo{s},
	}
}

// WithinTx implements repository.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.held(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, heldKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) held(ctx context.Context) bool {
	owner, _ := ctx.Value(heldKey{}).(*Store)
	return owner == s
}

// lock acquires the mutex unless ctx already runs inside WithinTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.held(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	ticketSeq     int64
	tickets       map[string]domain.Ticket
	sla           map[string]domain.SLARecord
	agents        map[string]domain.AgentProfile
	messages      map[string][]domain.TicketMessage
	attachments   map[string][]domain.AttachmentReference
	history       map[string][]domain.TicketHistory
	tenantConfigs map[string]domain.TenantConfig
	alertRules    map[string]domain.AlertRule
	alertHistory  map[string]domain.ActiveAlert
}

// snapshot copies the maps. Slices inside values are never mutated in place, so
// a shallow copy is enough.
func (s *Store) snapshot() snapshot {
	return snapshot{
		ticketSeq:     s.ticketSeq,
		tickets:       maps.Clone(s.tickets),
		sla:           maps.Clone(s.sla),
		agents:        maps.Clone(s.agents),
		messages:      maps.Clone(s.messages),
		attachments:   maps.Clone(s.attachments),
		history:       maps.Clone(s.history),
		tenantConfigs: maps.Clone(s.tenantConfigs),
		alertRules:    maps.Clone(s.alertRules),
		alertHistory:  maps.Clone(s.alertHistory),
	}
}

func (s *Store) restore(snap snapshot) {
	s.ticketSeq = snap.ticketSeq
	s.tickets = snap.tickets
	s.sla = snap.sla
	s.agents = snap.agents
	s.messages = snap.messages
	s.attachments = snap.attachments
	s.history = snap.history
	s.tenantConfigs = snap.tenantConfigs
	s.alertRules = snap.alertRules
	s.alertHistory = snap.alertHistory
}
