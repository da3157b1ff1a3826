package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/memoscope/memoscope/internal/types"
	"github.com/memoscope/memoscope/pkg/analysis"
	"github.com/memoscope/memoscope/pkg/retrieval"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the wire envelope for both directions on the socket. Clients
// send {type: "search", content: <query>} or {type: "clusters"}; the server
// answers with the same envelope carrying results in Data.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Embedder            types.Embedder
	Store               types.VectorStore
	SimilarChunks       int
	SimilarityThreshold float64
	ClusterCount        int
	Seed                int64
	Restarts            int
	MaxIterations       int
}

type Server struct {
	config Config
	engine *retrieval.Engine
}

func New(config Config) (*Server, error) {
	if config.Embedder == nil || config.Store == nil {
		return nil, fmt.Errorf("server requires an embedder and a vector store")
	}

	return &Server{
		config: config,
		engine: retrieval.New(config.Embedder, config.Store),
	}, nil
}

// ListenAndServe blocks serving the WebSocket endpoint and a health check.
func (s *Server) ListenAndServe(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	log.Printf("Starting WebSocket server on port %s", port)
	return http.ListenAndServe(":"+port, mux)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Error reading message: %v", err)
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		go s.handleMessage(conn, msg)
	}
}

func (s *Server) handleMessage(conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case "search":
		s.handleSearch(conn, msg.Content)
	case "clusters":
		s.handleClusters(conn)
	default:
		s.sendError(conn, fmt.Sprintf("unknown message type: %q", msg.Type))
	}
}

func (s *Server) handleSearch(conn *websocket.Conn, query string) {
	if strings.TrimSpace(query) == "" {
		s.sendError(conn, "search query is empty")
		return
	}

	results, err := s.engine.Retrieve(context.Background(), query, retrieval.Options{
		MatchCount:          s.config.SimilarChunks,
		SimilarityThreshold: s.config.SimilarityThreshold,
	})
	if err != nil {
		s.sendError(conn, fmt.Sprintf("search failed: %v", err))
		return
	}

	s.send(conn, Message{
		Type:    "results",
		Content: fmt.Sprintf("%d chunks matched", len(results)),
		Data:    results,
	})
}

// clusterSummary is what the clusters message returns per topic.
type clusterSummary struct {
	ID     int      `json:"id"`
	Titles []string `json:"titles"`
}

func (s *Server) handleClusters(conn *websocket.Conn) {
	ctx := context.Background()

	chunks, err := s.config.Store.AllChunkEmbeddings(ctx)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("failed to load embeddings: %v", err))
		return
	}

	articles, err := analysis.ArticleEmbeddings(chunks)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("failed to aggregate embeddings: %v", err))
		return
	}

	result, err := analysis.Cluster(articles, analysis.ClusterConfig{
		K:             s.config.ClusterCount,
		Seed:          s.config.Seed,
		Restarts:      s.config.Restarts,
		MaxIterations: s.config.MaxIterations,
	})
	if err != nil {
		s.sendError(conn, fmt.Sprintf("clustering failed: %v", err))
		return
	}

	titles := analysis.ClusterTitles(articles, result)
	summaries := make([]clusterSummary, 0, len(result.Centroids))
	for cid := 0; cid < len(result.Centroids); cid++ {
		summaries = append(summaries, clusterSummary{ID: cid, Titles: titles[cid]})
	}

	s.send(conn, Message{
		Type:    "clusters",
		Content: fmt.Sprintf("%d articles in %d clusters", len(articles), len(summaries)),
		Data:    summaries,
	})
}

func (s *Server) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, content string) {
	s.send(conn, Message{Type: "error", Content: content})
}
