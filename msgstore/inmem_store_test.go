package msgstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/msgstore"
)

func TestInMemoryStore_CreateAppendsInOrder(t *testing.T) {
	s := msgstore.NewInMemoryStore()
	require.NoError(t, s.Create(context.Background(), msgstore.Entity{ID: "m1", SessionID: "s1", MessageType: "text"}))
	require.NoError(t, s.Create(context.Background(), msgstore.Entity{ID: "m2", SessionID: "s1", MessageType: "tool_call"}))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "m1", all[0].ID)
	assert.Equal(t, "m2", all[1].ID)
}
