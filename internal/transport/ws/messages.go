package ws

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/Versifine/diver/internal/body"
	"github.com/Versifine/diver/internal/control"
	"github.com/Versifine/diver/internal/world"
)

const (
	MessageTypeHello   = "hello"
	MessageTypeFrame   = "frame"
	MessageTypeKeyDown = "keydown"
	MessageTypeKeyUp   = "keyup"
	MessageTypeReset   = "reset"
)

// HelloMessage is the first message on every connection.
type HelloMessage struct {
	Type     string      `json:"type"`
	ClientID string      `json:"clientId"`
	Water    world.Water `json:"water"`
	Radius   float64     `json:"radius"`
	Timestep float64     `json:"timestep"`
}

type DiverState struct {
	Transform world.Transform    `json:"transform"`
	Velocity  world.Vec3         `json:"velocity"`
	Depth     float64            `json:"depth"`
	Buoyancy  float64            `json:"buoyancy"`
	Submerged bool               `json:"submerged"`
	Input     control.InputState `json:"input"`
}

type FrameMessage struct {
	Type  string     `json:"type"`
	Frame uint64     `json:"frame"`
	Time  float64    `json:"time"`
	Diver DiverState `json:"diver"`
}

// ClientMessage is anything a browser sends: key transitions or a reset.
type ClientMessage struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
}

func frameMessage(f body.Frame) FrameMessage {
	v := f.State.Velocity
	return FrameMessage{
		Type:  MessageTypeFrame,
		Frame: f.Seq,
		Time:  f.Time,
		Diver: DiverState{
			Transform: body.ToTransform(f.State),
			Velocity:  world.Vec3{X: v.X(), Y: v.Y(), Z: v.Z()},
			Depth:     f.Depth,
			Buoyancy:  f.Buoyancy,
			Submerged: f.Submerged(),
			Input:     f.Input,
		},
	}
}

func snapshotMessage(s world.Snapshot) FrameMessage {
	return FrameMessage{
		Type:  MessageTypeFrame,
		Frame: s.Frame,
		Time:  s.Time,
		Diver: DiverState{
			Transform: s.Transform,
			Velocity:  s.Velocity,
			Depth:     s.Depth,
			Buoyancy:  s.Buoyancy,
			Submerged: s.Submerged(),
			Input:     s.Input,
		},
	}
}

// fingerprint hashes the diver state only, so two frames that differ just in
// sequence number and time collide.
func fingerprint(d DiverState) (uint64, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(raw), nil
}
