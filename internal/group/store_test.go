package group

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore()
	g, err := s.Create("Birthday", Person{FirstName: "A", LastName: "B", Email: " a@x.com "})
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "a@x.com", g.Lead.Email)

	got, err := s.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRequiresLeadEmail(t *testing.T) {
	_, err := NewStore().Create("x", Person{FirstName: "A"})
	assert.ErrorIs(t, err, ErrInvalidGroup)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := NewStore()
	g, _ := s.Create("x", Person{Email: "a@x.com"})
	_, err := s.SetRecipient(g.ID, Recipient{Name: "R", Country: "Canada"})
	require.NoError(t, err)

	snap, _ := s.Get(g.ID)
	snap.Recipient.Country = "Germany"
	snap.Members = append(snap.Members, Member{Name: "ghost"})

	again, _ := s.Get(g.ID)
	assert.Equal(t, "Canada", again.Recipient.Country)
	assert.Empty(t, again.Members)
}

func TestMembers(t *testing.T) {
	s := NewStore()
	g, _ := s.Create("x", Person{Email: "a@x.com"})

	m1, err := s.AddMember(g.ID, Member{Name: "One"})
	require.NoError(t, err)
	_, err = s.AddMember(g.ID, Member{Name: "Two"})
	require.NoError(t, err)
	_, err = s.AddMember(g.ID, Member{})
	assert.ErrorIs(t, err, ErrInvalidGroup)

	require.NoError(t, s.RemoveMember(g.ID, m1.ID))
	assert.ErrorIs(t, s.RemoveMember(g.ID, m1.ID), ErrMemberMissing)

	got, _ := s.Get(g.ID)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "Two", got.Members[0].Name)
}

func TestListAndDelete(t *testing.T) {
	s := NewStore()
	a, _ := s.Create("a", Person{Email: "a@x.com"})
	b, _ := s.Create("b", Person{Email: "b@x.com"})
	assert.Len(t, s.List(), 2)

	require.NoError(t, s.Delete(a.ID))
	assert.ErrorIs(t, s.Delete(a.ID), ErrNotFound)
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestSetRecipientReturnsUpdatedTimestamp(t *testing.T) {
	s := NewStore()
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }
	g, err := s.Create("x", Person{Email: "a@x.com"})
	require.NoError(t, err)

	later := created.Add(time.Minute)
	s.now = func() time.Time { return later }
	out, err := s.SetRecipient(g.ID, Recipient{Name: "R", Country: "Canada"})
	require.NoError(t, err)
	assert.Equal(t, later, out.UpdatedAt)
	assert.Equal(t, created, out.CreatedAt)

	stored, err := s.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, out)
}
