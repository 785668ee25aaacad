package group

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("group not found")
	ErrInvalidGroup  = errors.New("invalid group")
	ErrMemberMissing = errors.New("member not found")
)

// Person is the group lead.
type Person struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Member is someone the group is buying with.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Recipient is who the order ships to. Its email is kept for the group's own
// records and is never handed to a merchant.
type Recipient struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Group is a lead, their members and an optional shipping recipient.
type Group struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Lead      Person     `json:"lead"`
	Members   []Member   `json:"members"`
	Recipient *Recipient `json:"recipient,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// clone returns a deep copy so callers never hold a live reference.
func (g *Group) clone() Group {
	out := *g
	out.Members = append([]Member(nil), g.Members...)
	if g.Recipient != nil {
		r := *g.Recipient
		out.Recipient = &r
	}
	return out
}

// Store is an in-memory group store. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	groups map[string]*Group
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{groups: make(map[string]*Group), now: time.Now}
}

// Create adds a group led by lead.
func (s *Store) Create(name string, lead Person) (Group, error) {
	lead.Email = strings.TrimSpace(lead.Email)
	if lead.Email == "" {
		return Group{}, errors.Join(ErrInvalidGroup, errors.New("lead email is required"))
	}
	now := s.now().UTC()
	g := &Group{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Lead:      lead,
		Members:   []Member{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.groups[g.ID] = g
	s.mu.Unlock()
	return g.clone(), nil
}

// Get returns a snapshot of the group.
func (s *Store) Get(id string) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g.clone(), nil
}

// List returns snapshots of every group, oldest first.
func (s *Store) List() []Group {
	s.mu.RLock()
	out := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a group.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

// AddMember appends a member and returns it with its assigned id.
func (s *Store) AddMember(id string, m Member) (Member, error) {
	if strings.TrimSpace(m.Name) == "" {
		return Member{}, errors.Join(ErrInvalidGroup, errors.New("member name is required"))
	}
	m.ID = uuid.NewString()
	_, err := s.update(id, func(g *Group) error {
		g.Members = append(g.Members, m)
		return nil
	})
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

// RemoveMember drops a member by id.
func (s *Store) RemoveMember(id, memberID string) error {
	_, err := s.update(id, func(g *Group) error {
		for i, m := range g.Members {
			if m.ID == memberID {
				g.Members = append(g.Members[:i], g.Members[i+1:]...)
				return nil
			}
		}
		return ErrMemberMissing
	})
	return err
}

// SetRecipient designates where the group's order ships.
func (s *Store) SetRecipient(id string, r Recipient) (Group, error) {
	return s.update(id, func(g *Group) error {
		g.Recipient = &r
		return nil
	})
}

// update applies fn under the write lock, stamps UpdatedAt and returns a
// snapshot of the result.
func (s *Store) update(id string, fn func(*Group) error) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	if err := fn(g); err != nil {
		return Group{}, err
	}
	g.UpdatedAt = s.now().UTC()
	return g.clone(), nil
}
