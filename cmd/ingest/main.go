package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/eunoia-app/eunoia/embedder"
	openaiembedder "github.com/eunoia-app/eunoia/embedder/openai"
	"github.com/eunoia-app/eunoia/internal/service/chat"
	"github.com/eunoia-app/eunoia/logger"
	"github.com/eunoia-app/eunoia/vectorindex"
	"github.com/eunoia-app/eunoia/vectorindex/pgvector"
	"github.com/eunoia-app/eunoia/vectorindex/qdrant"
)

const (
	chunkSize = 1500
)

var (
	cfg struct {
		File     string `help:"JSON file of knowledge documents: [{\"content\": ..., \"source\": ...}]" arg:""`
		LogLevel string `help:"Log level" env:"LOG_LEVEL" default:"info"`

		VectorBackend  string `help:"Vector index backend (qdrant or pgvector)" env:"VECTOR_BACKEND" default:"qdrant"`
		VectorLocation string `help:"Qdrant base URL or postgres DSN" env:"VECTOR_LOCATION" default:"http://localhost:6333"`
		VectorApiKey   string `help:"API key for the vector index" env:"VECTOR_API_KEY" default:""`
		VectorCollect  string `help:"Vector collection name" env:"VECTOR_COLLECTION" default:"eunoia"`
		VectorSize     int    `help:"Embedding dimension" env:"VECTOR_SIZE" default:"1536"`

		EmbedderKey   string `help:"API key for the embedder" env:"EMBEDDER_API_KEY" default:""`
		EmbedderModel string `help:"Model identifier for the embedder" env:"EMBEDDER_MODEL" default:"text-embedding-ada-002"`
		EmbedderUrl   string `help:"OpenAI-compatible base URL for the embedder" env:"EMBEDDER_BASE_URL" default:""`
	}
)

type document struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Title   string `json:"title"`
}

func main() {
	godotenv.Load()
	_ = kong.Parse(&cfg)

	log := logger.NewLogger(cfg.LogLevel, false)

	data, err := os.ReadFile(cfg.File)
	if err != nil {
		log.Fatal("failed to read input file", logger.Fields{"error": err.Error()})
	}

	var documents []document
	if err := json.Unmarshal(data, &documents); err != nil {
		log.Fatal("failed to parse input file", logger.Fields{"error": err.Error()})
	}

	opts := []vectorindex.Option{
		vectorindex.WithLocation(cfg.VectorLocation),
		vectorindex.WithApiKey(cfg.VectorApiKey),
		vectorindex.WithCollection(cfg.VectorCollect),
		vectorindex.WithVectorSize(cfg.VectorSize),
	}

	var index vectorindex.Index
	switch cfg.VectorBackend {
	case "pgvector":
		index = pgvector.NewIndex(opts...)
	default:
		index = qdrant.NewIndex(opts...)
	}

	embed := openaiembedder.NewEmbedder(
		embedder.WithApiKey(cfg.EmbedderKey),
		embedder.WithModel(cfg.EmbedderModel),
		embedder.WithBaseUrl(cfg.EmbedderUrl),
	)

	ctx := context.Background()

	total := 0
	failed := 0

	for _, doc := range documents {
		for i, chunk := range split(doc.Content, chunkSize) {
			vector, err := embed.Embed(ctx, chunk)
			if err != nil {
				log.Warn("failed to embed chunk; skipping", logger.Fields{
					"error":  err.Error(),
					"source": doc.Source,
					"chunk":  i,
				})
				failed++
				continue
			}

			metadata := map[string]any{
				vectorindex.MetaContent: chunk,
				vectorindex.MetaSource:  doc.Source,
				vectorindex.MetaDocType: vectorindex.DocTypeKnowledge,
				"chunk_index":           i,
				"title":                 doc.Title,
				"length":                len(chunk),
			}

			if err := index.Upsert(ctx, chat.KnowledgeNamespace, uuid.New().String(), vector, metadata); err != nil {
				log.Warn("failed to upsert chunk", logger.Fields{
					"error":  err.Error(),
					"source": doc.Source,
					"chunk":  i,
				})
				failed++
				continue
			}

			total++
		}
	}

	log.Info("ingestion complete", logger.Fields{"chunks": total, "failed": failed})
}

// split breaks text into chunks of at most size runes, preferring paragraph
// and sentence boundaries.
func split(text string, size int) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if piece := strings.TrimSpace(current.String()); len(piece) > 0 {
			chunks = append(chunks, piece)
		}
		current.Reset()
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) == 0 {
			continue
		}

		if current.Len()+len(paragraph) > size && current.Len() > 0 {
			flush()
		}

		if len(paragraph) <= size {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(paragraph)
			continue
		}

		// Paragraph alone exceeds the chunk size: fall back to sentence
		// boundaries.
		for _, sentence := range strings.SplitAfter(paragraph, ". ") {
			if current.Len()+len(sentence) > size && current.Len() > 0 {
				flush()
			}
			current.WriteString(sentence)
		}
	}

	flush()

	return chunks
}
