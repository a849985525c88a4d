package chat

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/eunoia-app/eunoia/logger"
	"github.com/eunoia-app/eunoia/store"
	"github.com/eunoia-app/eunoia/vectorindex"
	getsafe "github.com/eunoia-app/eunoia/util/get_safe"
)

const (
	// KnowledgeNamespace holds the shared knowledge base; conversation
	// vectors live in one namespace per user id.
	KnowledgeNamespace = "mental_wellness_knowledge"

	retrievalTopK      = 3
	knowledgeThreshold = 0.7
	historyThreshold   = 0.6
	recentTurnLimit    = 3

	knowledgePreviewLen = 300
	historyPreviewLen   = 100
	recentPreviewLen    = 80

	retrievalTimeout = 10 * time.Second
)

// assembleContext builds the full prompt from three independently fallible
// sources. A failing source contributes an empty block; assembly itself
// never fails the turn.
func (s *Service) assembleContext(ctx context.Context, user *store.User, message string, conversationId string) string {
	vector := s.embedQuery(ctx, message)

	knowledge := s.knowledgeBlock(ctx, vector)
	history := s.historyBlock(ctx, user.Id, vector)
	recent := s.recentBlock(ctx, user.Id, conversationId)

	personality := user.PersonalityType
	if len(personality) == 0 {
		personality = "Unknown"
	}

	var sb bytes.Buffer
	sb.WriteString("You are an empathetic mental wellness chatbot. Your goal is to be warm, supportive, and encouraging.\n")
	sb.WriteString("User Profile:\n")
	fmt.Fprintf(&sb, "- Personality Type: %s\n", personality)
	sb.WriteString(knowledge)
	sb.WriteString(history)
	sb.WriteString(recent)
	fmt.Fprintf(&sb, "Current User Message: %s\n", message)
	sb.WriteString("Response:")

	return sb.String()
}

// embedQuery returns nil when no embedding is available so that retrieval
// degrades to an empty contribution.
func (s *Service) embedQuery(ctx context.Context, message string) []float32 {
	ctx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	vector, err := s.embedder.Embed(ctx, message)
	if err != nil {
		s.logger.Warn("failed to embed query; continuing without retrieval", logger.Fields{"error": err.Error()})
		return nil
	}

	return vector
}

func (s *Service) knowledgeBlock(ctx context.Context, vector []float32) string {
	if vector == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	matches, err := s.index.Query(ctx, KnowledgeNamespace, vector, retrievalTopK, map[string]any{
		vectorindex.MetaDocType: vectorindex.DocTypeKnowledge,
	})
	if err != nil {
		s.logger.Warn("knowledge base query failed", logger.Fields{"error": err.Error()})
		return ""
	}

	var sb bytes.Buffer
	for _, match := range matches {
		if match.Score <= knowledgeThreshold {
			continue
		}
		content := getsafe.String(match.Metadata, vectorindex.MetaContent)
		if len(content) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "- %s\n", preview(content, knowledgePreviewLen))
	}

	if sb.Len() == 0 {
		return ""
	}

	return "PROFESSIONAL MENTAL HEALTH KNOWLEDGE:\n" + sb.String()
}

func (s *Service) historyBlock(ctx context.Context, userId string, vector []float32) string {
	if vector == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	matches, err := s.index.Query(ctx, userId, vector, retrievalTopK, map[string]any{
		vectorindex.MetaDocType: vectorindex.DocTypeConversation,
	})
	if err != nil {
		s.logger.Warn("conversation history query failed", logger.Fields{"error": err.Error()})
		return ""
	}

	var sb bytes.Buffer
	for _, match := range matches {
		if match.Score <= historyThreshold {
			continue
		}
		content := getsafe.String(match.Metadata, vectorindex.MetaContent)
		response := getsafe.String(match.Metadata, vectorindex.MetaResponse)
		if len(content) == 0 || len(response) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "- Previously: '%s' -> '%s'\n", preview(content, historyPreviewLen), preview(response, historyPreviewLen))
	}

	if sb.Len() == 0 {
		return ""
	}

	return "SIMILAR PAST DISCUSSIONS:\n" + sb.String()
}

func (s *Service) recentBlock(ctx context.Context, userId string, conversationId string) string {
	turns, err := s.store.RecentTurns(ctx, userId, conversationId, recentTurnLimit)
	if err != nil {
		s.logger.Warn("failed to load recent turns", logger.Fields{"error": err.Error()})
		return ""
	}

	if len(turns) == 0 {
		return ""
	}

	var sb bytes.Buffer
	sb.WriteString("RECENT CONVERSATION CONTEXT:\n")
	for _, turn := range turns {
		fmt.Fprintf(&sb, "- Recent: '%s' -> '%s'\n", preview(turn.UserMessage, recentPreviewLen), preview(turn.BotResponse, recentPreviewLen))
	}

	return sb.String()
}

// preview truncates text to at most n runes, marking truncation with an
// ellipsis.
func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
