package world

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Versifine/diver/internal/control"
)

type WorldState struct {
	frame     uint64
	simTime   float64
	transform Transform
	velocity  Vec3
	depth     float64
	buoyancy  float64
	input     control.InputState
	water     Water
	clients   []Client
	mu        sync.RWMutex
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
}

type Water struct {
	SurfaceHeight float64 `json:"surfaceHeight"`
	Density       float64 `json:"density"`
	Size          float64 `json:"size"`
}

type Client struct {
	ID     string `json:"id"`
	Remote string `json:"remote"`
}

type Snapshot struct {
	Frame     uint64             `json:"frame"`
	Time      float64            `json:"time"`
	Transform Transform          `json:"transform"`
	Velocity  Vec3               `json:"velocity"`
	Depth     float64            `json:"depth"`
	Buoyancy  float64            `json:"buoyancy"`
	Input     control.InputState `json:"input"`
	Water     Water              `json:"water"`
	Clients   []Client           `json:"clients"`
}

// Submerged reports whether the diver's centre is below the surface.
func (s Snapshot) Submerged() bool {
	return s.Depth > 0
}

func (s Snapshot) String() string {
	var keys []string
	for _, k := range control.Keys {
		if s.Input.Held(k) {
			keys = append(keys, string(k))
		}
	}
	var ids []string
	for _, c := range s.Clients {
		ids = append(ids, fmt.Sprintf("%s(%s)", c.ID, c.Remote))
	}

	p := s.Transform.Position
	return fmt.Sprintf(
		"Snapshot [Frame: %d t=%.2fs] | [Position: (X: %.2f, Y: %.2f, Z: %.2f)] | [Velocity: (%.2f, %.2f, %.2f)] | [Depth: %.2f Buoyancy: %.1fN] | [Keys: %s] | [Clients(%d): %s]",
		s.Frame, s.Time,
		p.X, p.Y, p.Z,
		s.Velocity.X, s.Velocity.Y, s.Velocity.Z,
		s.Depth, s.Buoyancy,
		strings.Join(keys, ","),
		len(s.Clients),
		strings.Join(ids, ", "),
	)
}

func NewWorldState(water Water) *WorldState {
	return &WorldState{
		water:     water,
		transform: Transform{Rotation: Quat{W: 1}},
	}
}

func (ws *WorldState) GetState() Snapshot {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return Snapshot{
		Frame:     ws.frame,
		Time:      ws.simTime,
		Transform: ws.transform,
		Velocity:  ws.velocity,
		Depth:     ws.depth,
		Buoyancy:  ws.buoyancy,
		Input:     ws.input,
		Water:     ws.water,
		Clients:   append([]Client(nil), ws.clients...),
	}
}

// DiverUpdate is everything the simulation reports after one frame.
type DiverUpdate struct {
	Frame     uint64
	Time      float64
	Transform Transform
	Velocity  Vec3
	Input     control.InputState
	Depth     float64
	Buoyancy  float64
}

func (ws *WorldState) UpdateDiver(u DiverUpdate) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.frame = u.Frame
	ws.simTime = u.Time
	ws.transform = u.Transform
	ws.velocity = u.Velocity
	ws.input = u.Input
	ws.depth = u.Depth
	ws.buoyancy = u.Buoyancy
}

func (ws *WorldState) AddClient(c Client) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for i, existing := range ws.clients {
		if existing.ID == c.ID {
			ws.clients[i] = c
			return
		}
	}
	ws.clients = append(ws.clients, c)
}

func (ws *WorldState) RemoveClient(id string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if len(ws.clients) == 0 {
		return
	}

	filtered := ws.clients[:0]
	for _, c := range ws.clients {
		if c.ID != id {
			filtered = append(filtered, c)
		}
	}
	ws.clients = filtered
}
