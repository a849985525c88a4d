package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eunoia-app/eunoia/embedder"
	"github.com/eunoia-app/eunoia/generator"
	"github.com/eunoia-app/eunoia/logger"
	"github.com/eunoia-app/eunoia/store"
	"github.com/eunoia-app/eunoia/vectorindex"
	"github.com/google/uuid"
)

const (
	titlePrompt  = "Summarize the following user query in 3-5 words to be used as a title for a chat conversation. Be concise. Do not use quotes. User Query: '%s'"
	titleTimeout = 15 * time.Second

	defaultGenerationTimeout = 2 * time.Minute

	// FallbackMessage is shown in place of a response when generation fails.
	FallbackMessage = "I am sorry, I am having trouble generating a response. Please try again."
)

var (
	// ErrInvalidRequest is returned when the user id or message is missing,
	// or the target user does not exist.
	ErrInvalidRequest = errors.New("invalid chat request")

	// ErrGenerationFailed is returned when the model produced no usable
	// response. Callers substitute FallbackMessage.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrPersistenceFailed is returned when the turn could not be recorded
	// after the response was already delivered.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// Request is one inbound chat message. ConversationId is optional; when
// absent a new conversation id is synthesized and reported in the terminal
// event.
type Request struct {
	UserId         string `json:"user_id"`
	Message        string `json:"message"`
	ConversationId string `json:"conversation_id"`
}

// Event is one element of the response stream: a content fragment, a
// terminal Done event carrying the resolved conversation id, or a terminal
// error.
type Event struct {
	Content        string
	Done           bool
	ConversationId string
	Err            error
}

// Service coordinates one chat turn: context assembly, streaming
// generation, and persistence across the document store and vector index.
// It is safe for concurrent use; each request is an independent unit of
// work.
type Service struct {
	store             store.Store
	index             vectorindex.Index
	embedder          embedder.Embedder
	generator         generator.Generator
	titler            generator.Generator
	logger            *logger.Logger
	generationTimeout time.Duration
}

type Option func(*Service)

// WithGenerationTimeout bounds the whole generation stream for one turn. A
// provider that stalls past the deadline ends the turn with
// ErrGenerationFailed.
func WithGenerationTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.generationTimeout = timeout
	}
}

// Stream validates the request, resolves the conversation, and returns the
// event stream for the turn. Validation and ownership failures are returned
// synchronously; everything after that arrives on the channel.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	userId := strings.TrimSpace(req.UserId)
	message := strings.TrimSpace(req.Message)

	if len(userId) == 0 || len(message) == 0 {
		return nil, fmt.Errorf("user id and message are required: %w", ErrInvalidRequest)
	}

	user, err := s.store.FindUser(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userId, ErrInvalidRequest)
	}
	if err != nil {
		return nil, err
	}

	conversationId := strings.TrimSpace(req.ConversationId)
	if len(conversationId) == 0 {
		conversationId = uuid.New().String()
	}

	isNew := false

	conversation, err := s.store.FindConversation(ctx, conversationId)
	switch {
	case errors.Is(err, store.ErrNotFound):
		isNew = true
	case err != nil:
		return nil, err
	case conversation.UserId != userId:
		return nil, store.ErrConversationOwned
	}

	out := make(chan Event)

	go s.run(ctx, out, user, message, conversationId, isNew)

	return out, nil
}

func (s *Service) run(ctx context.Context, out chan<- Event, user *store.User, message string, conversationId string, isNew bool) {
	defer close(out)

	prompt := s.assembleContext(ctx, user, message, conversationId)

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	fragments, err := s.generator.Stream(genCtx, prompt)
	if err != nil {
		s.logger.Error("model stream failed to start", logger.Fields{
			"error":           err.Error(),
			"conversation_id": conversationId,
		})
		s.emit(ctx, out, Event{Err: ErrGenerationFailed})
		return
	}

	var full strings.Builder
	var genErr error

relay:
	for {
		var fragment generator.Fragment
		var open bool

		select {
		case fragment, open = <-fragments:
			if !open {
				break relay
			}
		case <-genCtx.Done():
			// A provider that stalls without closing its channel ends the
			// turn at the deadline.
			genErr = genCtx.Err()
			break relay
		}

		if fragment.Err != nil {
			genErr = fragment.Err
			break
		}

		full.WriteString(fragment.Content)

		if !s.emit(ctx, out, Event{Content: fragment.Content}) {
			// Caller disconnected mid-stream. The partial text is still
			// persisted below as a best-effort interrupted turn.
			genErr = ctx.Err()
			break
		}
	}

	response := full.String()

	// The turn is recorded on success and on controlled mid-stream failure,
	// so that whatever the caller saw is what the transcript shows. A stream
	// that failed before producing anything leaves no record.
	if genErr == nil || len(response) > 0 {
		if err := s.persist(context.WithoutCancel(ctx), user, message, response, conversationId, isNew); err != nil {
			if genErr == nil {
				s.logger.Error("turn not recorded after response was delivered; silent data loss", logger.Fields{
					"error":           err.Error(),
					"user_id":         user.Id,
					"conversation_id": conversationId,
				})
				s.emit(ctx, out, Event{Err: ErrPersistenceFailed})
				return
			}
		}
	}

	if genErr != nil {
		s.logger.Error("generation failed mid-stream", logger.Fields{
			"error":           genErr.Error(),
			"conversation_id": conversationId,
		})
		s.emit(ctx, out, Event{Err: ErrGenerationFailed})
		return
	}

	s.emit(ctx, out, Event{Done: true, ConversationId: conversationId})
}

func (s *Service) persist(ctx context.Context, user *store.User, message string, response string, conversationId string, isNew bool) error {
	turnId, err := s.store.AppendTurn(ctx, store.Turn{
		UserId:         user.Id,
		ConversationId: conversationId,
		UserMessage:    message,
		BotResponse:    response,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	// Best-effort enrichment: the turn is already durable, so embedding or
	// index failures only cost retrieval quality.
	s.indexTurn(ctx, user.Id, turnId, message, response)

	if isNew {
		title := s.generateTitle(ctx, message)
		if err := s.store.CreateConversation(ctx, store.Conversation{
			ConversationId: conversationId,
			UserId:         user.Id,
			Title:          title,
		}); err != nil {
			s.logger.Error("failed to create conversation record", logger.Fields{
				"error":           err.Error(),
				"conversation_id": conversationId,
			})
		}
		return nil
	}

	if err := s.store.TouchConversation(ctx, conversationId); err != nil {
		s.logger.Warn("failed to touch conversation", logger.Fields{
			"error":           err.Error(),
			"conversation_id": conversationId,
		})
	}

	return nil
}

func (s *Service) indexTurn(ctx context.Context, userId string, turnId string, message string, response string) {
	ctx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	vector, err := s.embedder.Embed(ctx, message)
	if err != nil {
		s.logger.Warn("failed to embed turn; skipping vector upsert", logger.Fields{
			"error":   err.Error(),
			"turn_id": turnId,
		})
		return
	}

	refId := uuid.New().String()

	metadata := map[string]any{
		vectorindex.MetaUserId:   userId,
		vectorindex.MetaContent:  message,
		vectorindex.MetaResponse: response,
		vectorindex.MetaDocType:  vectorindex.DocTypeConversation,
		"turn_id":                turnId,
	}

	if err := s.index.Upsert(ctx, userId, refId, vector, metadata); err != nil {
		s.logger.Warn("vector upsert failed; turn stored without reference", logger.Fields{
			"error":   err.Error(),
			"turn_id": turnId,
		})
		return
	}

	if err := s.store.AttachVectorRef(ctx, turnId, refId); err != nil {
		s.logger.Warn("failed to attach vector reference", logger.Fields{
			"error":   err.Error(),
			"turn_id": turnId,
		})
	}
}

func (s *Service) generateTitle(ctx context.Context, firstMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	title, err := s.titler.Generate(ctx, fmt.Sprintf(titlePrompt, firstMessage))
	if err != nil {
		s.logger.Warn("title generation failed", logger.Fields{"error": err.Error()})
		return store.DefaultTitle
	}

	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if len(title) == 0 {
		return store.DefaultTitle
	}

	return title
}

// ListConversations returns the user's conversations, most recently updated
// first.
func (s *Service) ListConversations(ctx context.Context, userId string, limit int) ([]store.ConversationSummary, error) {
	return s.store.ListConversations(ctx, userId, limit)
}

// Transcript returns the full turn history of a conversation in
// chronological order.
func (s *Service) Transcript(ctx context.Context, conversationId string) ([]store.Turn, error) {
	return s.store.TurnsForConversation(ctx, conversationId)
}

func (s *Service) emit(ctx context.Context, out chan<- Event, event Event) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewService wires the chat engine. The titler drives conversation title
// generation and may be a smaller model; when nil the main generator is
// used.
func NewService(
	st store.Store,
	index vectorindex.Index,
	embedder embedder.Embedder,
	generator generator.Generator,
	titler generator.Generator,
	log *logger.Logger,
	opts ...Option,
) *Service {
	if st == nil {
		panic("store is required")
	}

	if index == nil {
		panic("vector index is required")
	}

	if embedder == nil {
		panic("embedder is required")
	}

	if generator == nil {
		panic("generator is required")
	}

	if titler == nil {
		titler = generator
	}

	if log == nil {
		log = logger.NewNop()
	}

	s := &Service{
		store:             st,
		index:             index,
		embedder:          embedder,
		generator:         generator,
		titler:            titler,
		logger:            log,
		generationTimeout: defaultGenerationTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.generationTimeout <= 0 {
		s.generationTimeout = defaultGenerationTimeout
	}

	return s
}
