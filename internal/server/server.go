// Package server runs the maze generation service: an HTTP API that
// generates mazes from a mission and a websocket feed that publishes each
// result to observation consumers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/towermaze/internal/config"
	"github.com/lawnchairsociety/towermaze/internal/database"
	"github.com/lawnchairsociety/towermaze/internal/logger"
	"github.com/lawnchairsociety/towermaze/internal/maze"
	"github.com/lawnchairsociety/towermaze/internal/mazespec"
	"github.com/lawnchairsociety/towermaze/internal/placement"
)

// MazeStore persists generated mazes. *database.Database implements it.
type MazeStore interface {
	SaveMaze(s maze.Snapshot) (*database.MazeRecord, bool, error)
	GetMaze(id int64) (*database.MazeRecord, error)
	ListMazes(limit int) ([]*database.MazeRecord, error)
}

// Server serves the generation API and the snapshot feed.
type Server struct {
	cfg       *config.ServiceConfig
	mission   *mazespec.Mission
	store     MazeStore
	publisher *Publisher

	connLimiter *ConnLimiter
	throttle    *GenerateThrottle

	genMu sync.Mutex // serialises generation so publications keep request order

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// NewServer creates a server that generates from mission. store may be nil,
// in which case results are published but not persisted.
func NewServer(cfg *config.ServiceConfig, mission *mazespec.Mission, store MazeStore) *Server {
	return &Server{
		cfg:         cfg,
		mission:     mission,
		store:       store,
		publisher:   NewPublisher(),
		connLimiter: NewConnLimiter(cfg.Connections),
		throttle:    NewGenerateThrottle(cfg.RateLimit),
	}
}

// Publisher returns the server's snapshot publisher.
func (s *Server) Publisher() *Publisher {
	return s.publisher
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("GET /maze", s.handleLatest)
	mux.HandleFunc("GET /mazes", s.handleListMazes)
	mux.HandleFunc("GET /mazes/{id}", s.handleGetMaze)
	mux.HandleFunc("GET /ws", s.handleWebSocketUpgrade)
	return mux
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Maze service listening", "address", s.cfg.Listen)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops the listener, disconnects subscribers and stops the
// throttle. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		s.publisher.closeAll()
		s.throttle.Stop()
		logger.Info("Maze service shutdown complete")
	})
	return err
}

// GenerateResponse is the body returned by POST /generate.
type GenerateResponse struct {
	ID          int64         `json:"id,omitempty"`
	Created     bool          `json:"created"`
	Fingerprint string        `json:"fingerprint"`
	Snapshot    maze.Snapshot `json:"snapshot"`
}

// Generate runs one generation with optional seed overrides, stores and
// publishes the result.
func (s *Server) Generate(pathSeed, materialSeed string) (*GenerateResponse, error) {
	m, err := s.mission.WithSeeds(pathSeed, materialSeed)
	if err != nil {
		return nil, err
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	result, err := maze.Generate(m)
	if err != nil {
		return nil, err
	}
	plan, err := placement.Build(m, result, s.cfg.Generation.PlacementOptions())
	if err != nil {
		return nil, err
	}

	snap := result.Snapshot()
	resp := &GenerateResponse{Fingerprint: snap.Fingerprint, Snapshot: snap, Created: true}

	if s.store != nil {
		rec, created, err := s.store.SaveMaze(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to store maze: %w", err)
		}
		resp.ID = rec.ID
		resp.Created = created
		if created {
			logger.Audit("Maze stored", append(logger.Maze(snap.Fingerprint, snap.PathSeed, snap.MaterialSeed), "id", rec.ID)...)
		}
	}

	if dir := s.cfg.Generation.PlanDir; dir != "" {
		if err := writePlan(dir, snap.Fingerprint, plan); err != nil {
			logger.Error("Failed to write placement plan", "dir", dir, "error", err)
		}
	}

	if err := s.publisher.Publish(Publication{ID: resp.ID, Snapshot: snap, Plan: plan}); err != nil {
		return nil, fmt.Errorf("failed to publish maze: %w", err)
	}

	logger.Info("Maze generated", append(logger.Maze(snap.Fingerprint, snap.PathSeed, snap.MaterialSeed),
		"subscribers", s.publisher.SubscriberCount())...)
	return resp, nil
}

func writePlan(dir, fingerprint string, plan *placement.Plan) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	name := "plan_" + fingerprint[:min(len(fingerprint), 16)] + ".yaml"
	return plan.WriteFile(filepath.Join(dir, name))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	clientIP := getRealIP(r)
	if ok, wait := s.throttle.Allow(clientIP); !ok {
		logger.Warning("Generation rejected - rate limited", "client_ip", clientIP, "retry_after", wait)
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds()+0.999)))
		http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	q := r.URL.Query()
	resp, err := s.Generate(q.Get("path_seed"), q.Get("material_seed"))
	if err != nil {
		if errors.Is(err, mazespec.ErrInvalidSeed) || errors.Is(err, mazespec.ErrInvalidMission) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("Generation failed", "client_ip", clientIP, "error", err)
		http.Error(w, "generation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	pub, ok := s.publisher.Latest()
	if !ok {
		http.Error(w, "no maze generated yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handleListMazes(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "maze store disabled", http.StatusNotFound)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.store.ListMazes(limit)
	if err != nil {
		logger.Error("Failed to list mazes", "error", err)
		http.Error(w, "failed to list mazes", http.StatusInternalServerError)
		return
	}

	type summary struct {
		ID            int64     `json:"id"`
		Fingerprint   string    `json:"fingerprint"`
		Width         int       `json:"width"`
		Length        int       `json:"length"`
		PathSeed      int64     `json:"path_seed"`
		MaterialSeed  int64     `json:"material_seed"`
		PathLength    int       `json:"path_length"`
		WaypointCount int       `json:"waypoint_count"`
		CreatedAt     time.Time `json:"created_at"`
	}
	out := make([]summary, 0, len(records))
	for _, rec := range records {
		out = append(out, summary{
			ID:            rec.ID,
			Fingerprint:   rec.Fingerprint,
			Width:         rec.Width,
			Length:        rec.Length,
			PathSeed:      rec.PathSeed,
			MaterialSeed:  rec.MaterialSeed,
			PathLength:    rec.PathLength,
			WaypointCount: rec.WaypointCount,
			CreatedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMaze(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "maze store disabled", http.StatusNotFound)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid maze id", http.StatusBadRequest)
		return
	}

	rec, err := s.store.GetMaze(id)
	if errors.Is(err, database.ErrMazeNotFound) {
		http.Error(w, "maze not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to load maze", "id", id, "error", err)
		http.Error(w, "failed to load maze", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, Publication{ID: rec.ID, Snapshot: rec.Snapshot})
}

// handleWebSocketUpgrade upgrades a request to a snapshot subscription.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	clientIP := getRealIP(r)

	if !s.connLimiter.TryAcquire(clientIP) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		s.connLimiter.Release(clientIP)
		return
	}

	go s.handleSubscriber(conn, clientIP)
}

// handleSubscriber runs one subscription until the client goes away.
func (s *Server) handleSubscriber(conn *websocket.Conn, clientIP string) {
	sub := newSubscriber(conn, clientIP)
	defer func() {
		s.publisher.unsubscribe(sub)
		s.connLimiter.Release(clientIP)
		logger.Info("Subscriber disconnected", "client_ip", clientIP)
	}()

	logger.Info("Subscriber connected", "client_ip", clientIP)
	s.publisher.subscribe(sub)

	ws := s.cfg.WebSocket
	go sub.writePump(ws.WriteTimeout(), ws.PingInterval())
	sub.readPump(s.publisher, ws.MaxMessageSize, 2*ws.PingInterval())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}
