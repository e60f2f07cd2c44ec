package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/session"
)

func TestInMemoryStore_GetByIDMissingReturnsErrNotFound(t *testing.T) {
	s := session.NewInMemoryStore()
	_, err := s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestInMemoryStore_CreateThenGetByIDRoundTrips(t *testing.T) {
	s := session.NewInMemoryStore()
	entity := session.Entity{ID: "s1", Status: session.StatusActive, CreatedAt: time.Now()}
	require.NoError(t, s.Create(context.Background(), entity))

	got, err := s.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, got.Status)
}

func TestInMemoryStore_UpdateMissingReturnsErrNotFound(t *testing.T) {
	s := session.NewInMemoryStore()
	err := s.Update(context.Background(), session.Entity{ID: "missing"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestInMemoryStore_UpdateChangesStoredEntity(t *testing.T) {
	s := session.NewInMemoryStore()
	require.NoError(t, s.Create(context.Background(), session.Entity{ID: "s1", Status: session.StatusActive}))

	ended := time.Now()
	require.NoError(t, s.Update(context.Background(), session.Entity{ID: "s1", Status: session.StatusEnded, EndedAt: &ended}))

	got, err := s.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusEnded, got.Status)
	require.NotNil(t, got.EndedAt)
}
