package http

import (
	"context"
	"net/http"
	"time"

	"github.com/eunoia-app/eunoia/internal/service/chat"
	"github.com/eunoia-app/eunoia/logger"
	"github.com/gorilla/mux"
)

// Server exposes the chat engine over HTTP: a streaming chat endpoint plus
// conversation listing and transcripts.
type Server struct {
	router *mux.Router
	server *http.Server
	chat   *chat.Service
	logger *logger.Logger
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/chat/stream", s.handleChatStream).Methods(http.MethodPost)
	s.router.HandleFunc("/api/conversations", s.handleListConversations).Methods(http.MethodGet)
	s.router.HandleFunc("/api/conversations/{id}/messages", s.handleTranscript).Methods(http.MethodGet)
}

// Run blocks serving requests until the listener fails or Shutdown is
// called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", logger.Fields{"addr": s.server.Addr})
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func NewServer(addr string, chatService *chat.Service, log *logger.Logger) *Server {
	if chatService == nil {
		panic("chat service is required")
	}

	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		router: mux.NewRouter(),
		chat:   chatService,
		logger: log,
	}

	s.router.Use(LoggingMiddleware(log))
	s.routes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}
