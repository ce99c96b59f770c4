// Package status exposes the lights' state to people: a periodic log
// report, and an HTTP server with health, metrics and websocket streams.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/coreman2200/dv8lights/internal/diagnostics"
	"github.com/coreman2200/dv8lights/internal/policy"
	"github.com/coreman2200/dv8lights/internal/render"
	"github.com/coreman2200/dv8lights/internal/statebus"
	"github.com/coreman2200/dv8lights/internal/transport"
)

// Sources are the read-only views the server reports on.
type Sources struct {
	Bus   *statebus.Bus
	Color *render.ColorCell
	Face  func() policy.Face
}

type Server struct {
	src      Sources
	log      zerolog.Logger
	inject   transport.Handler
	throttle time.Duration

	mu          sync.RWMutex
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	frameID     map[string]uint64
	lastEmit    map[string]time.Time
	startTime   time.Time

	frames chan []byte
	diags  chan []byte
	wmu    sync.Mutex
}

type Option func(*Server)

// WithInject lets /control clients feed updates into the bus the same way
// the broker does.
func WithInject(h transport.Handler) Option { return func(s *Server) { s.inject = h } }

// WithThrottle sets the minimum gap between streamed frames of one array.
func WithThrottle(d time.Duration) Option { return func(s *Server) { s.throttle = d } }

func NewServer(src Sources, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		src:         src,
		log:         log.With().Str("component", "status").Logger(),
		throttle:    50 * time.Millisecond, // ~20 FPS to viewers
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		frameID:     map[string]uint64{},
		lastEmit:    map[string]time.Time{},
		startTime:   time.Now(),
		frames:      make(chan []byte, 16),
		diags:       make(chan []byte, 64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves addr and fans out streams until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go s.broadcast(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("status server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Observe is a render.Observer. It never blocks the renderer: frames are
// dropped when viewers fall behind.
func (s *Server) Observe(array string, f render.Frame) {
	now := time.Now()
	s.mu.Lock()
	if len(s.clients) == 0 || now.Sub(s.lastEmit[array]) < s.throttle {
		s.mu.Unlock()
		return
	}
	s.lastEmit[array] = now
	s.frameID[array]++
	id := s.frameID[array]
	s.mu.Unlock()

	rgb := make([]byte, len(f)*3)
	for i, c := range f {
		rgb[i*3+0], rgb[i*3+1], rgb[i*3+2] = c.R, c.G, c.B
	}
	type frame struct {
		T       int64  `json:"t"`
		Array   string `json:"array"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{T: now.UnixNano(), Array: array, FrameID: id, RGB: rgb})
	select {
	case s.frames <- b:
	default:
	}
}

// Diagnostic is a diagnostics.Sink.
func (s *Server) Diagnostic(d diagnostics.Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	b, _ := json.Marshal(d)
	select {
	case s.diags <- b:
	default:
	}
}

func (s *Server) broadcast(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case b := <-s.frames:
			s.writeAll(s.clients, b)
		case b := <-s.diags:
			s.writeAll(s.diagClients, b)
		}
	}
}

func (s *Server) writeAll(set map[*websocket.Conn]bool, b []byte) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	s.wmu.Lock()
	defer s.wmu.Unlock()
	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("stream write")
		}
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	for c := range s.diagClients {
		c.Close()
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, s.clients)
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, s.diagClients)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	set[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(set, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// controlMsg is one update in bridge form, e.g. {"key":"robot_mode","value":3}
// or {"key":"led_light","value":{"rgb":"10,20,30"}}.
type controlMsg struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// HandleControlWS accepts updates and acknowledges each one.
func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ack := map[string]any{"ok": true}
		if err := s.applyControl(data); err != nil {
			ack = map[string]any{"ok": false, "error": err.Error()}
		}
		if err := conn.WriteJSON(ack); err != nil {
			return
		}
	}
}

func (s *Server) applyControl(data []byte) error {
	if s.inject == nil {
		return errors.New("control disabled")
	}
	var msg controlMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	topic, payload, err := transport.BridgeMessage(msg.Key, msg.Value)
	if err != nil {
		return err
	}
	s.log.Info().Str("topic", topic).RawJSON("payload", payload).Msg("control update")
	s.inject(topic, payload)
	return nil
}

// Health is the /health document.
type Health struct {
	UptimeS      float64           `json:"uptime_s"`
	Frames       map[string]uint64 `json:"frames_streamed"`
	Version      uint64            `json:"bus_version"`
	CurrentColor string            `json:"current_color"`
	Face         string            `json:"face"`
	Mode         string            `json:"robot_mode"`
	Registers    map[string]any    `json:"registers"`
	Light        statebus.Override `json:"light_override"`
	PanelEnabled bool              `json:"panel_override"`
}

func (s *Server) health() Health {
	s.mu.RLock()
	frames := make(map[string]uint64, len(s.frameID))
	for k, v := range s.frameID {
		frames[k] = v
	}
	s.mu.RUnlock()

	h := Health{UptimeS: time.Since(s.startTime).Seconds(), Frames: frames}
	if s.src.Bus != nil {
		snap := s.src.Bus.Snapshot()
		h.Version = snap.Version
		h.Mode = snap.RobotMode.String()
		h.Registers = Registers(snap)
		h.Light = snap.Light
		h.PanelEnabled = snap.Panel.Enabled
	}
	if s.src.Color != nil {
		h.CurrentColor = s.src.Color.Load().String()
	}
	if s.src.Face != nil {
		h.Face = s.src.Face().String()
	}
	return h
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}
