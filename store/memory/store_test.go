package memory

import (
	"context"
	"testing"
	"time"

	"github.com/eunoia-app/eunoia/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindUser(t *testing.T) {
	t.Parallel()

	st := NewStore()
	st.AddUser(store.User{Id: "u1", Name: "Ana", PersonalityType: "INFJ"})

	user, err := st.FindUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)

	_, err = st.FindUser(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateConversation_OwnershipAndIdempotency(t *testing.T) {
	t.Parallel()

	st := NewStore()
	ctx := context.Background()

	require.NoError(t, st.CreateConversation(ctx, store.Conversation{ConversationId: "c1", UserId: "u1", Title: "First"}))

	// Same owner, same id: a no-op that keeps the original record.
	require.NoError(t, st.CreateConversation(ctx, store.Conversation{ConversationId: "c1", UserId: "u1", Title: "Changed"}))

	conversation, err := st.FindConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "First", conversation.Title)

	// Different owner claiming the same id is rejected.
	err = st.CreateConversation(ctx, store.Conversation{ConversationId: "c1", UserId: "u2"})
	assert.ErrorIs(t, err, store.ErrConversationOwned)
}

func TestCreateConversation_DefaultTitle(t *testing.T) {
	t.Parallel()

	st := NewStore()
	ctx := context.Background()

	require.NoError(t, st.CreateConversation(ctx, store.Conversation{ConversationId: "c1", UserId: "u1"}))

	conversation, err := st.FindConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, store.DefaultTitle, conversation.Title)
	assert.False(t, conversation.CreatedAt.IsZero())
	assert.False(t, conversation.UpdatedAt.IsZero())
}

func TestTouchConversation(t *testing.T) {
	t.Parallel()

	st := NewStore()
	ctx := context.Background()

	created := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, st.CreateConversation(ctx, store.Conversation{
		ConversationId: "c1",
		UserId:         "u1",
		CreatedAt:      created,
		UpdatedAt:      created,
	}))

	require.NoError(t, st.TouchConversation(ctx, "c1"))

	conversation, err := st.FindConversation(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, conversation.UpdatedAt.After(created))
	assert.Equal(t, created, conversation.CreatedAt)

	assert.ErrorIs(t, st.TouchConversation(ctx, "missing"), store.ErrNotFound)
}

func TestAppendTurn_AndAttachVectorRef(t *testing.T) {
	t.Parallel()

	st := NewStore()
	ctx := context.Background()

	turnId, err := st.AppendTurn(ctx, store.Turn{
		UserId:         "u1",
		ConversationId: "c1",
		UserMessage:    "hello",
		BotResponse:    "hi",
	})
	require.NoError(t, err)
	require.NotEmpty(t, turnId)

	require.NoError(t, st.AttachVectorRef(ctx, turnId, "vec-1"))

	turns, err := st.TurnsForConversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "vec-1", turns[0].VectorRef)

	assert.ErrorIs(t, st.AttachVectorRef(ctx, "missing", "vec-2"), store.ErrNotFound)

	_, err = st.AppendTurn(ctx, store.Turn{UserMessage: "no ids"})
	assert.Error(t, err)
}

func TestRecentTurns_ChronologicalTail(t *testing.T) {
	t.Parallel()

	st := NewStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, msg := range []string{"one", "two", "three", "four"} {
		_, err := st.AppendTurn(ctx, store.Turn{
			UserId:         "u1",
			ConversationId: "c1",
			UserMessage:    msg,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	// A turn from another conversation must not leak in.
	_, err := st.AppendTurn(ctx, store.Turn{
		UserId:         "u1",
		ConversationId: "c2",
		UserMessage:    "other",
		Timestamp:      base.Add(time.Hour),
	})
	require.NoError(t, err)

	turns, err := st.RecentTurns(ctx, "u1", "c1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "two", turns[0].UserMessage)
	assert.Equal(t, "three", turns[1].UserMessage)
	assert.Equal(t, "four", turns[2].UserMessage)
}

func TestListConversations_MostRecentlyUpdatedFirst(t *testing.T) {
	t.Parallel()

	st := NewStore()
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, st.CreateConversation(ctx, store.Conversation{
		ConversationId: "old", UserId: "u1", Title: "Old",
		CreatedAt: base.Add(-2 * time.Hour), UpdatedAt: base.Add(-2 * time.Hour),
	}))
	require.NoError(t, st.CreateConversation(ctx, store.Conversation{
		ConversationId: "new", UserId: "u1", Title: "New",
		CreatedAt: base.Add(-time.Hour), UpdatedAt: base,
	}))
	require.NoError(t, st.CreateConversation(ctx, store.Conversation{
		ConversationId: "other-user", UserId: "u2", Title: "Other",
		CreatedAt: base, UpdatedAt: base,
	}))

	summaries, err := st.ListConversations(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "new", summaries[0].ConversationId)
	assert.Equal(t, "old", summaries[1].ConversationId)

	limited, err := st.ListConversations(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ConversationId)
}
