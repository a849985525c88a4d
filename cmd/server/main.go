package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eunoia-app/eunoia/embedder"
	openaiembedder "github.com/eunoia-app/eunoia/embedder/openai"
	"github.com/eunoia-app/eunoia/generator"
	anthropicgenerator "github.com/eunoia-app/eunoia/generator/anthropic"
	googlegenerator "github.com/eunoia-app/eunoia/generator/google"
	openaigenerator "github.com/eunoia-app/eunoia/generator/openai"
	"github.com/eunoia-app/eunoia/internal/service/chat"
	"github.com/eunoia-app/eunoia/logger"
	httpserver "github.com/eunoia-app/eunoia/server/http"
	mongostore "github.com/eunoia-app/eunoia/store/mongo"
	"github.com/eunoia-app/eunoia/vectorindex"
	"github.com/eunoia-app/eunoia/vectorindex/pgvector"
	"github.com/eunoia-app/eunoia/vectorindex/qdrant"
)

var (
	cfg struct {
		// Server config
		Addr     string `help:"Listen address" env:"ADDR" default:":8080"`
		LogLevel string `help:"Log level" env:"LOG_LEVEL" default:"info"`
		LogJson  bool   `help:"Emit logs as JSON" env:"LOG_JSON" default:"true"`

		// Document store config
		MongoUri      string `help:"MongoDB connection string" env:"MONGO_URI" default:"mongodb://localhost:27017"`
		MongoDatabase string `help:"MongoDB database name" env:"MONGO_DATABASE" default:"eunoia"`

		// Vector index config
		VectorBackend   string `help:"Vector index backend (qdrant or pgvector)" env:"VECTOR_BACKEND" default:"qdrant"`
		VectorLocation  string `help:"Qdrant base URL or postgres DSN" env:"VECTOR_LOCATION" default:"http://localhost:6333"`
		VectorApiKey    string `help:"API key for the vector index" env:"VECTOR_API_KEY" default:""`
		VectorCollect   string `help:"Vector collection name" env:"VECTOR_COLLECTION" default:"eunoia"`
		VectorSize      int    `help:"Embedding dimension" env:"VECTOR_SIZE" default:"1536"`

		// Embedder config
		EmbedderKey   string `help:"API key for the embedder" env:"EMBEDDER_API_KEY" default:""`
		EmbedderModel string `help:"Model identifier for the embedder" env:"EMBEDDER_MODEL" default:"text-embedding-ada-002"`
		EmbedderUrl   string `help:"OpenAI-compatible base URL for the embedder" env:"EMBEDDER_BASE_URL" default:""`

		// Generator config
		GeneratorProvider string `help:"Generator provider (openai, anthropic, or google)" env:"GENERATOR_PROVIDER" default:"openai"`
		GeneratorKey      string `help:"API key for the generator" env:"GENERATOR_API_KEY" default:""`
		GeneratorModel    string `help:"Model identifier for the generator" env:"GENERATOR_MODEL" default:"gpt-4o-mini"`
		GeneratorUrl      string `help:"OpenAI-compatible base URL for the generator" env:"GENERATOR_BASE_URL" default:""`
		TitleModel        string `help:"Model identifier for title generation (defaults to the generator model)" env:"TITLE_MODEL" default:""`
	}
)

func main() {
	godotenv.Load()
	_ = kong.Parse(&cfg)

	log := logger.NewLogger(cfg.LogLevel, cfg.LogJson)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoUri))
	if err != nil {
		log.Fatal("failed to connect to mongo", logger.Fields{"error": err.Error()})
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatal("failed to ping mongo", logger.Fields{"error": err.Error()})
	}

	st := mongostore.NewStore(mongoClient.Database(cfg.MongoDatabase))

	index := newIndex()

	embed := openaiembedder.NewEmbedder(
		embedder.WithApiKey(cfg.EmbedderKey),
		embedder.WithModel(cfg.EmbedderModel),
		embedder.WithBaseUrl(cfg.EmbedderUrl),
	)

	gen := newGenerator(cfg.GeneratorModel)

	titler := gen
	if len(cfg.TitleModel) > 0 {
		titler = newGenerator(cfg.TitleModel)
	}

	chatService := chat.NewService(st, index, embed, gen, titler, log)

	server := httpserver.NewServer(cfg.Addr, chatService, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	go func() {
		if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", logger.Fields{"error": err.Error()})
		}
	}()

	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", logger.Fields{"error": err.Error()})
	}

	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("failed to disconnect mongo", logger.Fields{"error": err.Error()})
	}
}

func newIndex() vectorindex.Index {
	opts := []vectorindex.Option{
		vectorindex.WithLocation(cfg.VectorLocation),
		vectorindex.WithApiKey(cfg.VectorApiKey),
		vectorindex.WithCollection(cfg.VectorCollect),
		vectorindex.WithVectorSize(cfg.VectorSize),
	}

	switch cfg.VectorBackend {
	case "pgvector":
		return pgvector.NewIndex(opts...)
	default:
		return qdrant.NewIndex(opts...)
	}
}

func newGenerator(model string) generator.Generator {
	opts := []generator.Option{
		generator.WithApiKey(cfg.GeneratorKey),
		generator.WithModel(model),
	}

	switch cfg.GeneratorProvider {
	case "anthropic":
		return anthropicgenerator.NewGenerator(opts...)
	case "google":
		return googlegenerator.NewGenerator(opts...)
	default:
		return openaigenerator.NewGenerator(append(opts, generator.WithBaseUrl(cfg.GeneratorUrl))...)
	}
}
