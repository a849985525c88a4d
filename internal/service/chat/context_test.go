package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/eunoia-app/eunoia/logger"
	"github.com/eunoia-app/eunoia/store"
	memorystore "github.com/eunoia-app/eunoia/store/memory"
	"github.com/eunoia-app/eunoia/vectorindex"
	memoryindex "github.com/eunoia-app/eunoia/vectorindex/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleContext_EmptySourcesEmitNoHeadings(t *testing.T) {
	t.Parallel()

	st := memorystore.NewStore()
	seedUser(st, "u1")

	svc := NewService(st, memoryindex.NewIndex(), &fakeEmbedder{vector: []float32{1, 0}}, &scriptGenerator{}, nil, logger.NewNop())

	user := &store.User{Id: "u1", PersonalityType: "ENFJ"}
	prompt := svc.assembleContext(context.Background(), user, "hello there", "c1")

	assert.Contains(t, prompt, "empathetic mental wellness chatbot")
	assert.Contains(t, prompt, "- Personality Type: ENFJ")
	assert.Contains(t, prompt, "Current User Message: hello there")
	assert.True(t, strings.HasSuffix(prompt, "Response:"))

	assert.NotContains(t, prompt, "PROFESSIONAL MENTAL HEALTH KNOWLEDGE:")
	assert.NotContains(t, prompt, "SIMILAR PAST DISCUSSIONS:")
	assert.NotContains(t, prompt, "RECENT CONVERSATION CONTEXT:")
}

func TestAssembleContext_BlockOrder(t *testing.T) {
	t.Parallel()

	st := memorystore.NewStore()
	seedUser(st, "u1")

	index := memoryindex.NewIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, KnowledgeNamespace, "k1", []float32{1, 0}, map[string]any{
		vectorindex.MetaDocType: vectorindex.DocTypeKnowledge,
		vectorindex.MetaContent: "box breathing exercise",
	}))
	require.NoError(t, index.Upsert(ctx, "u1", "h1", []float32{1, 0}, map[string]any{
		vectorindex.MetaDocType:  vectorindex.DocTypeConversation,
		vectorindex.MetaContent:  "worried about exams",
		vectorindex.MetaResponse: "break the revision into small blocks",
	}))

	svc := NewService(st, index, &fakeEmbedder{vector: []float32{1, 0}}, &scriptGenerator{}, nil, logger.NewNop())

	_, err := st.AppendTurn(ctx, store.Turn{
		UserId:         "u1",
		ConversationId: "c1",
		UserMessage:    "earlier message",
		BotResponse:    "earlier response",
	})
	require.NoError(t, err)

	user := &store.User{Id: "u1"}
	prompt := svc.assembleContext(ctx, user, "how do I calm down", "c1")

	knowledgeAt := strings.Index(prompt, "PROFESSIONAL MENTAL HEALTH KNOWLEDGE:")
	historyAt := strings.Index(prompt, "SIMILAR PAST DISCUSSIONS:")
	recentAt := strings.Index(prompt, "RECENT CONVERSATION CONTEXT:")
	messageAt := strings.Index(prompt, "Current User Message:")

	require.GreaterOrEqual(t, knowledgeAt, 0)
	require.GreaterOrEqual(t, historyAt, 0)
	require.GreaterOrEqual(t, recentAt, 0)

	assert.Less(t, knowledgeAt, historyAt)
	assert.Less(t, historyAt, recentAt)
	assert.Less(t, recentAt, messageAt)

	assert.Contains(t, prompt, "- box breathing exercise")
	assert.Contains(t, prompt, "- Previously: 'worried about exams' -> 'break the revision into small blocks'")
	assert.Contains(t, prompt, "- Recent: 'earlier message' -> 'earlier response'")
	assert.Contains(t, prompt, "- Personality Type: Unknown")
}

func TestAssembleContext_RecentTurnsLimitedToLastThree(t *testing.T) {
	t.Parallel()

	st := memorystore.NewStore()
	seedUser(st, "u1")

	ctx := context.Background()
	messages := []string{"one", "two", "three", "four"}
	for _, msg := range messages {
		_, err := st.AppendTurn(ctx, store.Turn{
			UserId:         "u1",
			ConversationId: "c1",
			UserMessage:    msg,
			BotResponse:    "reply to " + msg,
		})
		require.NoError(t, err)
	}

	svc := NewService(st, memoryindex.NewIndex(), &fakeEmbedder{err: context.DeadlineExceeded}, &scriptGenerator{}, nil, logger.NewNop())

	prompt := svc.assembleContext(ctx, &store.User{Id: "u1"}, "next", "c1")

	assert.NotContains(t, prompt, "- Recent: 'one'")
	assert.Contains(t, prompt, "- Recent: 'two' -> 'reply to two'")
	assert.Contains(t, prompt, "- Recent: 'three' -> 'reply to three'")
	assert.Contains(t, prompt, "- Recent: 'four' -> 'reply to four'")
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "exact", preview("exact", 5))
	assert.Equal(t, "abc...", preview("abcdef", 3))
	assert.Equal(t, "héllo...", preview("héllo wörld", 5))
}
