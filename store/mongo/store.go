package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eunoia-app/eunoia/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
	turnsCollection         = "chats"
)

type mongoStore struct {
	db *mongo.Database
}

type userDocument struct {
	Id              string `bson:"_id"`
	Name            string `bson:"name"`
	PersonalityType string `bson:"personality_type"`
}

type turnDocument struct {
	Id             primitive.ObjectID `bson:"_id,omitempty"`
	UserId         string             `bson:"user_id"`
	ConversationId string             `bson:"conversation_id"`
	UserMessage    string             `bson:"user_message"`
	BotResponse    string             `bson:"bot_response"`
	Timestamp      time.Time          `bson:"timestamp"`
	VectorRef      string             `bson:"vector_ref,omitempty"`
	Embedding      []float32          `bson:"embedding,omitempty"`
}

type conversationDocument struct {
	Id             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationId string             `bson:"conversation_id"`
	UserId         string             `bson:"user_id"`
	Title          string             `bson:"title"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func decodeUser(doc userDocument) (*store.User, error) {
	if len(doc.Id) == 0 {
		return nil, fmt.Errorf("user is missing an id: %w", store.ErrInvalidDocument)
	}
	return &store.User{
		Id:              doc.Id,
		Name:            doc.Name,
		PersonalityType: doc.PersonalityType,
	}, nil
}

func decodeTurn(doc turnDocument) (store.Turn, error) {
	if len(doc.UserId) == 0 || len(doc.ConversationId) == 0 {
		return store.Turn{}, fmt.Errorf("turn is missing user or conversation id: %w", store.ErrInvalidDocument)
	}
	return store.Turn{
		Id:             doc.Id.Hex(),
		UserId:         doc.UserId,
		ConversationId: doc.ConversationId,
		UserMessage:    doc.UserMessage,
		BotResponse:    doc.BotResponse,
		Timestamp:      doc.Timestamp,
		VectorRef:      doc.VectorRef,
		Embedding:      doc.Embedding,
	}, nil
}

func decodeConversation(doc conversationDocument) (*store.Conversation, error) {
	if len(doc.ConversationId) == 0 || len(doc.UserId) == 0 {
		return nil, fmt.Errorf("conversation is missing an id or owner: %w", store.ErrInvalidDocument)
	}
	return &store.Conversation{
		ConversationId: doc.ConversationId,
		UserId:         doc.UserId,
		Title:          doc.Title,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func (s *mongoStore) FindUser(ctx context.Context, userId string) (*store.User, error) {
	var doc userDocument

	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userId}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeUser(doc)
}

func (s *mongoStore) FindConversation(ctx context.Context, conversationId string) (*store.Conversation, error) {
	var doc conversationDocument

	err := s.db.Collection(conversationsCollection).FindOne(ctx, bson.M{"conversation_id": conversationId}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeConversation(doc)
}

func (s *mongoStore) CreateConversation(ctx context.Context, conversation store.Conversation) error {
	existing, err := s.FindConversation(ctx, conversation.ConversationId)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if existing != nil {
		if existing.UserId != conversation.UserId {
			return store.ErrConversationOwned
		}
		return nil
	}

	now := time.Now().UTC()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = now
	}
	if len(conversation.Title) == 0 {
		conversation.Title = store.DefaultTitle
	}

	_, err = s.db.Collection(conversationsCollection).InsertOne(ctx, conversationDocument{
		Id:             primitive.NewObjectID(),
		ConversationId: conversation.ConversationId,
		UserId:         conversation.UserId,
		Title:          conversation.Title,
		CreatedAt:      conversation.CreatedAt,
		UpdatedAt:      conversation.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		// Lost a race on the unique conversation_id index: a concurrent
		// first turn inserted the record between the lookup and the insert.
		winner, findErr := s.FindConversation(ctx, conversation.ConversationId)
		if findErr != nil {
			return findErr
		}
		if winner.UserId != conversation.UserId {
			return store.ErrConversationOwned
		}
		return nil
	}

	return err
}

func (s *mongoStore) TouchConversation(ctx context.Context, conversationId string) error {
	result, err := s.db.Collection(conversationsCollection).UpdateOne(
		ctx,
		bson.M{"conversation_id": conversationId},
		bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *mongoStore) AppendTurn(ctx context.Context, turn store.Turn) (string, error) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	doc := turnDocument{
		Id:             primitive.NewObjectID(),
		UserId:         turn.UserId,
		ConversationId: turn.ConversationId,
		UserMessage:    turn.UserMessage,
		BotResponse:    turn.BotResponse,
		Timestamp:      turn.Timestamp,
		Embedding:      turn.Embedding,
	}

	if _, err := s.db.Collection(turnsCollection).InsertOne(ctx, doc); err != nil {
		return "", err
	}

	return doc.Id.Hex(), nil
}

func (s *mongoStore) AttachVectorRef(ctx context.Context, turnId string, refId string) error {
	id, err := primitive.ObjectIDFromHex(turnId)
	if err != nil {
		return fmt.Errorf("bad turn id %q: %w", turnId, store.ErrInvalidDocument)
	}

	result, err := s.db.Collection(turnsCollection).UpdateByID(ctx, id, bson.M{"$set": bson.M{"vector_ref": refId}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *mongoStore) RecentTurns(ctx context.Context, userId string, conversationId string, limit int) ([]store.Turn, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(turnsCollection).Find(
		ctx,
		bson.M{"user_id": userId, "conversation_id": conversationId},
		opts,
	)
	if err != nil {
		return nil, err
	}

	turns, err := decodeTurns(ctx, cursor)
	if err != nil {
		return nil, err
	}

	// Most-recent-first from the query, reversed to chronological order for
	// prompt assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (s *mongoStore) ListConversations(ctx context.Context, userId string, limit int) ([]store.ConversationSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(conversationsCollection).Find(ctx, bson.M{"user_id": userId}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var summaries []store.ConversationSummary
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		conversation, err := decodeConversation(doc)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, store.ConversationSummary{
			ConversationId: conversation.ConversationId,
			Title:          conversation.Title,
		})
	}

	return summaries, cursor.Err()
}

func (s *mongoStore) TurnsForConversation(ctx context.Context, conversationId string) ([]store.Turn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := s.db.Collection(turnsCollection).Find(ctx, bson.M{"conversation_id": conversationId}, opts)
	if err != nil {
		return nil, err
	}

	return decodeTurns(ctx, cursor)
}

func decodeTurns(ctx context.Context, cursor *mongo.Cursor) ([]store.Turn, error) {
	defer cursor.Close(ctx)

	var turns []store.Turn
	for cursor.Next(ctx) {
		var doc turnDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		turn, err := decodeTurn(doc)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}

	return turns, cursor.Err()
}

func (s *mongoStore) configure() error {
	_, err := s.db.Collection(conversationsCollection).Indexes().CreateOne(
		context.Background(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	)
	return err
}

func NewStore(db *mongo.Database) store.Store {
	if db == nil {
		panic("mongo database is required")
	}

	s := &mongoStore{db: db}

	if err := s.configure(); err != nil {
		panic(fmt.Sprintf("failed to configure mongo store: %v", err))
	}

	return s
}
