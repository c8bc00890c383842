// Package api provides the HTTP and WebSocket server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/internal/events"
	"github.com/atlas-desktop/strategy-validator/internal/validator"
	"github.com/atlas-desktop/strategy-validator/internal/workers"
	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// Server is the HTTP/WebSocket API server
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client

	validator *validator.Validator
	pool      *workers.Pool
	bus       *events.Bus
	registry  *prometheus.Registry

	jobs map[string]*jobState
}

// Client represents a WebSocket client
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// jobState tracks an asynchronous validation job.
type jobState struct {
	ID      string
	Started time.Time
	Record  *types.ValidationRecord
	Err     string
}

// ValidationRequest is the body for POST /api/v1/validations.
type ValidationRequest struct {
	Strategy *types.StrategyDefinition `json:"strategy"`
	Dataset  *types.BacktestDataset    `json:"dataset"`
}

// Message represents a WebSocket message
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"` // event, response
	Method    string      `json:"method"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, config *types.ServerConfig, v *validator.Validator, pool *workers.Pool, bus *events.Bus, registry *prometheus.Registry) *Server {
	if config == nil {
		config = types.DefaultServerConfig()
	}

	server := &Server{
		logger:    logger,
		config:    config,
		router:    mux.NewRouter(),
		clients:   make(map[string]*Client),
		validator: v,
		pool:      pool,
		bus:       bus,
		registry:  registry,
		jobs:      make(map[string]*jobState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	server.setupRoutes()
	server.subscribeEvents()
	return server
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/validations", s.handleCreateValidation).Methods("POST")
	s.router.HandleFunc("/api/v1/validations", s.handleListValidations).Methods("GET")
	s.router.HandleFunc("/api/v1/validations/{id}", s.handleGetValidation).Methods("GET")

	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// subscribeEvents forwards validation lifecycle events to WebSocket
// clients.
func (s *Server) subscribeEvents() {
	if s.bus == nil {
		return
	}
	forward := func(event events.Event) {
		s.broadcast(&Message{
			ID:        event.ID,
			Type:      "event",
			Method:    string(event.Type),
			Payload:   event.Record,
			Timestamp: event.Timestamp.UnixMilli(),
		})
	}
	s.bus.Subscribe(events.EventValidationCompleted, forward)
	s.bus.Subscribe(events.EventValidationRejected, forward)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting API server", zap.String("addr", addr))

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// handleCreateValidation runs a validation. With ?async=true the run is
// queued on the worker pool and a job ID is returned for polling.
func (s *Server) handleCreateValidation(w http.ResponseWriter, r *http.Request) {
	var req ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Strategy == nil {
		http.Error(w, "strategy is required", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		s.startAsyncValidation(w, &req)
		return
	}

	record, err := s.validator.Validate(r.Context(), req.Strategy, req.Dataset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(record)
}

func (s *Server) startAsyncValidation(w http.ResponseWriter, req *ValidationRequest) {
	job := &jobState{
		ID:      uuid.New().String(),
		Started: time.Now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	err := s.pool.SubmitFunc(func() error {
		record, err := s.validator.Validate(context.Background(), req.Strategy, req.Dataset)

		s.mu.Lock()
		if err != nil {
			job.Err = err.Error()
			s.logger.Error("Async validation failed",
				zap.String("job", job.ID), zap.Error(err))
		} else {
			job.Record = record
		}
		s.mu.Unlock()
		return err
	})
	if err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      job.ID,
		"status":  string(types.StatusInProgress),
		"started": job.Started.Unix(),
	})
}

// handleListValidations returns recent validation records, newest
// first.
func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records := s.validator.History().Recent(limit)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"validations": records,
		"count":       len(records),
	})
}

// handleGetValidation returns one record by record ID or async job ID.
func (s *Server) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if record := s.validator.History().Get(id); record != nil {
		json.NewEncoder(w).Encode(record)
		return
	}

	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "Validation not found", http.StatusNotFound)
		return
	}

	if job.Record != nil {
		json.NewEncoder(w).Encode(job.Record)
		return
	}

	response := map[string]interface{}{
		"id":      job.ID,
		"status":  string(types.StatusInProgress),
		"started": job.Started.Unix(),
	}
	if job.Err != "" {
		response["status"] = string(types.StatusError)
		response["error"] = job.Err
	}
	json.NewEncoder(w).Encode(response)
}

// handleStats reports worker pool and event bus counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"history": s.validator.History().Len(),
	}
	if s.pool != nil {
		response["pool"] = s.pool.Stats()
	}
	if s.bus != nil {
		published, dropped := s.bus.Stats()
		response["events"] = map[string]int64{
			"published": published,
			"dropped":   dropped,
		}
	}
	json.NewEncoder(w).Encode(response)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	s.logger.Info("WebSocket client connected", zap.String("id", client.ID))

	go s.readPump(client)
	go s.writePump(client)
}

// readPump handles incoming WebSocket messages
func (s *Server) readPump(client *Client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.ID)
		s.mu.Unlock()
		client.Conn.Close()
		s.logger.Info("WebSocket client disconnected", zap.String("id", client.ID))
	}()

	client.Conn.SetReadLimit(64 * 1024)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			s.logger.Warn("Invalid WebSocket message", zap.Error(err))
			continue
		}

		s.handleMessage(client, &msg)
	}
}

// writePump handles outgoing WebSocket messages
func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles a WebSocket message
func (s *Server) handleMessage(client *Client, msg *Message) {
	response := &Message{
		ID:        msg.ID,
		Type:      "response",
		Method:    msg.Method,
		Timestamp: time.Now().UnixMilli(),
	}

	switch msg.Method {
	case "ping":
		response.Payload = map[string]string{"pong": "ok"}
	case "validations:recent":
		response.Payload = s.validator.History().Recent(20)
	default:
		response.Error = "Unknown method: " + msg.Method
	}

	s.send(client, response)
}

// send queues a message to a single client, dropping it if the client
// is slow.
func (s *Server) send(client *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case client.Send <- data:
	default:
		s.logger.Warn("Client send buffer full, dropping message",
			zap.String("client", client.ID))
	}
}

// broadcast sends a message to all connected clients
func (s *Server) broadcast(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast", zap.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.Send <- data:
		default:
			s.logger.Warn("Client send buffer full, dropping broadcast",
				zap.String("client", client.ID))
		}
	}
}
