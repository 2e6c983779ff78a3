package event

const (
	EventSurface     = "diver.surface"
	EventReset       = "diver.reset"
	EventClientJoin  = "client.join"
	EventClientLeave = "client.leave"
)

// SurfaceEvent fires on the frame the diver's centre crosses the water surface.
type SurfaceEvent struct {
	Frame     uint64
	Submerged bool
	Depth     float64
	Speed     float64
}

type ResetEvent struct {
	Source string
}

type ClientEvent struct {
	ID     string
	Remote string
}
