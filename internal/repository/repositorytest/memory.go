// Package repositorytest provides an in-memory ContactRepository for tests.
package repositorytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/crm-basico/internal/domain"
	"github.com/spec-kit/crm-basico/internal/repository"
)

// Memory mirrors the store semantics: ids are never reused, email is unique
// and listings are newest first. Setting Err makes every call fail with it.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	contacts map[int64]domain.Contact
	clock    time.Time

	Err  error
	Down bool
}

var _ repository.ContactRepository = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[int64]domain.Contact),
		clock:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *Memory) ListAll(_ context.Context) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.sorted(func(domain.Contact) bool { return true }), nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (*domain.Contact, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	c, ok := m.contacts[id]
	if !ok {
		return nil, false, nil
	}
	return &c, true, nil
}

func (m *Memory) Create(_ context.Context, input domain.ContactInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if m.emailTaken(input.Email, 0) {
		return 0, domain.ErrDuplicateEmail
	}
	m.nextID++
	now := m.tick()
	m.contacts[m.nextID] = domain.Contact{
		ID:        m.nextID,
		Name:      strings.Clone(input.Name),
		Email:     strings.Clone(input.Email),
		Phone:     clonePtr(input.Phone),
		Company:   clonePtr(input.Company),
		Status:    statusOrDefault(input.Status),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.nextID, nil
}

func (m *Memory) Update(_ context.Context, id int64, input domain.ContactInput) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	c, ok := m.contacts[id]
	if !ok {
		return false, nil
	}
	if m.emailTaken(input.Email, id) {
		return false, domain.ErrDuplicateEmail
	}
	c.Name = strings.Clone(input.Name)
	c.Email = strings.Clone(input.Email)
	c.Phone = clonePtr(input.Phone)
	c.Company = clonePtr(input.Company)
	c.Status = statusOrDefault(input.Status)
	c.UpdatedAt = m.tick()
	m.contacts[id] = c
	return true, nil
}

func (m *Memory) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.contacts[id]; !ok {
		return false, nil
	}
	delete(m.contacts, id)
	return true, nil
}

func (m *Memory) Search(_ context.Context, term string) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	needle := strings.ToLower(term)
	return m.sorted(func(c domain.Contact) bool {
		if strings.Contains(strings.ToLower(c.Name), needle) || strings.Contains(strings.ToLower(c.Email), needle) {
			return true
		}
		return c.Company != nil && strings.Contains(strings.ToLower(*c.Company), needle)
	}), nil
}

func (m *Memory) GetStats(_ context.Context) (domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.Stats{}, m.Err
	}
	var s domain.Stats
	for _, c := range m.contacts {
		s.Total++
		switch c.Status {
		case domain.ContactStatusProspect:
			s.Prospects++
		case domain.ContactStatusCustomer:
			s.Customers++
		case domain.ContactStatusInactive:
			s.Inactive++
		}
	}
	return s, nil
}

func (m *Memory) CheckConnection(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Down && m.Err == nil
}

func (m *Memory) emailTaken(email string, except int64) bool {
	for id, c := range m.contacts {
		if id != except && c.Email == email {
			return true
		}
	}
	return false
}

func (m *Memory) sorted(keep func(domain.Contact) bool) []domain.Contact {
	out := make([]domain.Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.Clone(*s)
	return &v
}

func statusOrDefault(s domain.ContactStatus) domain.ContactStatus {
	if s == "" {
		return domain.ContactStatusProspect
	}
	return s
}
