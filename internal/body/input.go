package body

import "github.com/Versifine/diver/internal/control"

// InputState is the single input format shared by the frame loop, the
// terminal view, the debug console and remote clients.
// It aliases control.InputState to avoid field divergence.
type InputState = control.InputState
