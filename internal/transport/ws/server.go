package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Versifine/diver/internal/body"
	"github.com/Versifine/diver/internal/control"
	"github.com/Versifine/diver/internal/event"
	"github.com/Versifine/diver/internal/input"
	"github.com/Versifine/diver/internal/world"
)

const (
	DefaultSendBuffer = 32
	maxMessageSize    = 4096
	writeWait         = time.Second
	shutdownTimeout   = 3 * time.Second
)

type InputSink interface {
	Push(evt input.KeyEvent) bool
}

type Resetter interface {
	Reset()
}

type StateStore interface {
	GetState() world.Snapshot
	AddClient(c world.Client)
	RemoveClient(id string)
}

type Options struct {
	Addr       string
	Water      world.Water
	Radius     float64
	Timestep   float64
	SendBuffer int
}

// Server streams frames to browsers over websocket and feeds their key
// events into the input queue.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	inputs   InputSink
	resetter Resetter
	state    StateStore
	bus      *event.Bus
	opts     Options

	mu      sync.RWMutex
	clients map[string]*client

	// holders counts the clients holding each key.
	keyMu   sync.Mutex
	holders map[control.Key]int

	lastHash  atomic.Uint64
	hashValid atomic.Bool
	dropped   atomic.Uint64
	boundAddr atomic.Value
}

type client struct {
	id     string
	remote string
	conn   *SafeWriter
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	held map[control.Key]bool
}

func NewServer(opts Options, inputs InputSink, resetter Resetter, state StateStore, bus *event.Bus) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	return &Server{
		addr: opts.Addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		inputs:   inputs,
		resetter: resetter,
		state:    state,
		bus:      bus,
		opts:     opts,
		clients:  make(map[string]*client),
		holders:  make(map[control.Key]int),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/state", s.handleState)
	return mux
}

// Addr is the bound listen address once Start is running.
func (s *Server) Addr() string {
	if v, ok := s.boundAddr.Load().(string); ok {
		return v
	}
	return ""
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("Starting websocket server", "addr", s.addr)
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.boundAddr.Store(ln.Addr().String())

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down websocket server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Websocket server shutdown", "error", err)
		}
		<-errCh
		slog.Info("Websocket server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Websocket server failed", "error", err)
		return err
	}
}

// Present broadcasts a frame to every client. Frames with the same diver
// state as the previous broadcast are skipped, and a client whose queue is
// full misses the frame.
func (s *Server) Present(frame body.Frame) {
	msg := frameMessage(frame)
	hash, err := fingerprint(msg.Diver)
	if err != nil {
		slog.Warn("Fingerprint frame failed", "error", err)
		return
	}
	if s.hashValid.Load() && s.lastHash.Load() == hash {
		return
	}
	s.lastHash.Store(hash)
	s.hashValid.Store(true)

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("Encode frame failed", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.dropped.Add(1)
		}
	}
}

// Dropped counts frames skipped because a client's queue was full.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.GetState()); err != nil {
		slog.Debug("Write state response failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{
		id:     uuid.New().String(),
		remote: r.RemoteAddr,
		conn:   NewSafeWriter(conn),
		send:   make(chan []byte, s.opts.SendBuffer),
		done:   make(chan struct{}),
		held:   make(map[control.Key]bool),
	}
	defer c.close()

	hello := HelloMessage{
		Type:     MessageTypeHello,
		ClientID: c.id,
		Water:    s.opts.Water,
		Radius:   s.opts.Radius,
		Timestep: s.opts.Timestep,
	}
	if err := c.conn.WriteJSON(hello); err != nil {
		slog.Warn("Send hello failed", "client", c.id, "error", err)
		return
	}
	if err := c.conn.WriteJSON(snapshotMessage(s.state.GetState())); err != nil {
		slog.Warn("Send initial frame failed", "client", c.id, "error", err)
		return
	}

	s.register(c)
	defer s.unregister(c)

	go c.writeLoop()
	s.readLoop(c)
}

// register publishes the client before it becomes visible to Present, so
// ClientCount never runs ahead of the scene state.
func (s *Server) register(c *client) {
	s.state.AddClient(world.Client{ID: c.id, Remote: c.remote})
	if s.bus != nil {
		s.bus.Publish(event.EventClientJoin, event.ClientEvent{ID: c.id, Remote: c.remote})
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	slog.Info("Websocket client connected", "client", c.id, "remote", c.remote)
}

func (s *Server) unregister(c *client) {
	// Keys still held by a vanished browser would thrust forever.
	for _, key := range c.heldKeys() {
		s.setKey(c, key, false)
	}

	if s.bus != nil {
		s.bus.Publish(event.EventClientLeave, event.ClientEvent{ID: c.id, Remote: c.remote})
	}
	s.state.RemoveClient(c.id)

	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	slog.Info("Websocket client disconnected", "client", c.id, "remote", c.remote)
}

func (s *Server) readLoop(c *client) {
	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Websocket read failed", "client", c.id, "error", err)
			}
			return
		}
		s.handleMessage(c, msg)
	}
}

func (s *Server) handleMessage(c *client, msg ClientMessage) {
	switch msg.Type {
	case MessageTypeKeyDown, MessageTypeKeyUp:
		key, ok := input.ParseKey(msg.Key)
		if !ok {
			slog.Debug("Ignoring unknown key", "client", c.id, "key", msg.Key)
			return
		}
		s.setKey(c, key, msg.Type == MessageTypeKeyDown)
	case MessageTypeReset:
		if s.resetter != nil {
			s.resetter.Reset()
		}
		if s.bus != nil {
			s.bus.Publish(event.EventReset, event.ResetEvent{Source: "ws:" + c.id})
		}
	default:
		slog.Debug("Ignoring unknown message", "client", c.id, "type", msg.Type)
	}
}

// setKey records c's key state and forwards it to the input queue. A release
// is swallowed while another client still holds the key.
func (s *Server) setKey(c *client, key control.Key, pressed bool) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	was := c.setHeld(key, pressed)
	switch {
	case pressed && !was:
		s.holders[key]++
	case !pressed && was:
		s.holders[key]--
	}
	if !pressed && s.holders[key] > 0 {
		slog.Debug("Key still held by another client", "client", c.id, "key", key, "holders", s.holders[key])
		return
	}
	if !s.inputs.Push(input.KeyEvent{Key: key, Pressed: pressed}) {
		slog.Warn("Input queue full, key event dropped", "client", c.id, "key", key)
	}
}

func (s *Server) closeAll() {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		_ = c.conn.WriteClose(websocket.CloseGoingAway, "server shutting down", time.Now().Add(writeWait))
		c.close()
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				slog.Debug("Websocket write failed", "client", c.id, "error", err)
				c.close()
				return
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// setHeld updates the client's held set and reports the previous state.
func (c *client) setHeld(key control.Key, pressed bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.held[key]
	if pressed {
		c.held[key] = true
	} else {
		delete(c.held, key)
	}
	return was
}

func (c *client) heldKeys() []control.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []control.Key
	for _, k := range control.Keys {
		if c.held[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
