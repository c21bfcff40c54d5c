// Package server exposes the log store over HTTP and WebSocket: pull
// queries, statistics, export, filter and clear mutations, Prometheus
// metrics, and a live stream of visible-sequence snapshots.
package server

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frontiercc/campfire/pkg/archive"
	"github.com/frontiercc/campfire/pkg/logstore"
	"github.com/frontiercc/campfire/pkg/query"
)

//go:embed index.html
var indexHTML string

// Server serves the viewer API over a log store and an optional
// rotation archive.
type Server struct {
	store    *logstore.Store
	archive  *archive.Store // may be nil
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

type client struct {
	conn *websocket.Conn
	send chan []logstore.Entry
	done chan struct{}
}

// New creates a server. arch may be nil when the archive is disabled.
func New(store *logstore.Store, arch *archive.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   store,
		archive: arch,
		log:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
		},
		clients: make(map[*websocket.Conn]*client),
	}
}

// Start runs the broadcast worker and serves HTTP on the given port.
func (s *Server) Start(port int) error {
	go s.broadcastWorker()

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/level", s.handleLevel).Methods(http.MethodPost)
	r.HandleFunc("/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/stream", s.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	addr := fmt.Sprintf(":%d", port)
	s.log.Info("starting viewer server", "addr", addr)

	return http.ListenAndServe(addr, r)
}

// handleIndex serves the web UI
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexHTML))
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Statistics()
	total := 0
	for _, n := range stats {
		total += n
	}

	writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"logs_stored": total,
	})
}

// handleStats handles GET /stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Statistics()
	levels := make(map[string]int, len(stats))
	total := 0
	for level, n := range stats {
		levels[level.String()] = n
		total += n
	}

	response := map[string]interface{}{
		"total_logs":    total,
		"levels":        levels,
		"minimum_level": s.store.MinimumLevel().String(),
	}

	if s.archive != nil {
		if archStats, err := s.archive.GetStats(); err == nil {
			response["archive"] = archStats
		}
	}

	writeJSON(w, response)
}

// handleQuery handles POST /query. source=archive targets the
// rotation archive instead of the live store.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query  string `json:"query"`
		Source string `json:"source"`
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Default values
	if req.Limit == 0 {
		req.Limit = 100
	}

	queryStr := req.Query
	if queryStr == "" {
		queryStr = "*"
	}

	q, err := query.Parse(queryStr)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid query: %v", err), http.StatusBadRequest)
		return
	}

	start := time.Now()
	var entries []logstore.Entry
	var total int

	switch req.Source {
	case "", "live":
		for _, e := range s.store.Entries() {
			if !q.Match(e) {
				continue
			}
			total++
			if total > req.Offset && len(entries) < req.Limit {
				entries = append(entries, e)
			}
		}
	case "archive":
		if s.archive == nil {
			http.Error(w, "archive is disabled", http.StatusBadRequest)
			return
		}
		entries, total, err = s.archive.Query(q, req.Limit, req.Offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	default:
		http.Error(w, fmt.Sprintf("unknown source: %s", req.Source), http.StatusBadRequest)
		return
	}

	// Ensure entries is never nil for JSON encoding
	if entries == nil {
		entries = []logstore.Entry{}
	}

	writeJSON(w, map[string]interface{}{
		"logs":    entries,
		"total":   total,
		"took_ms": time.Since(start).Milliseconds(),
	})
}

// handleExport handles GET /export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="campfire_logs.json"`)
	w.Write([]byte(s.store.ExportJSON()))
}

// handleLevel handles POST /level
func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	level, ok := logstore.ParseLevel(req.Level)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown level: %s", req.Level), http.StatusBadRequest)
		return
	}

	s.store.SetMinimumLevel(level)
	writeJSON(w, map[string]interface{}{"minimum_level": level.String()})
}

// handleClear handles POST /clear
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	writeJSON(w, map[string]interface{}{"cleared": true})
}

// handleWebSocket handles WS /stream
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []logstore.Entry, 1),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[conn] = c
	s.mu.Unlock()

	// Deliver the current snapshot right away
	c.send <- s.store.Visible()

	go s.writePump(c)
	go s.readPump(c)
}

// readPump discards client messages and tears the client down on
// disconnect.
func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.conn)
		s.mu.Unlock()
		close(c.done)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump sends visible-sequence snapshots to the WebSocket.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case snap := <-c.send:
			msg := map[string]interface{}{
				"type": "snapshot",
				"logs": snap,
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// broadcastWorker relays store snapshots to all connected clients. A
// slow client keeps only the latest undelivered snapshot.
func (s *Server) broadcastWorker() {
	snapshots, cancel := s.store.Subscribe()
	defer cancel()

	for snap := range snapshots {
		s.mu.RLock()
		for _, c := range s.clients {
			select {
			case c.send <- snap:
			default:
				select {
				case <-c.send:
				default:
				}
				select {
				case c.send <- snap:
				default:
				}
			}
		}
		s.mu.RUnlock()
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
