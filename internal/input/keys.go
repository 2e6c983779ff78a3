package input

import (
	"strings"

	"github.com/Versifine/diver/internal/control"
)

var keyNames = map[string]control.Key{
	"up":         control.KeyUp,
	"arrowup":    control.KeyUp,
	"keyw":       control.KeyUp,
	"w":          control.KeyUp,
	"down":       control.KeyDown,
	"arrowdown":  control.KeyDown,
	"keys":       control.KeyDown,
	"s":          control.KeyDown,
	"left":       control.KeyLeft,
	"arrowleft":  control.KeyLeft,
	"keya":       control.KeyLeft,
	"a":          control.KeyLeft,
	"right":      control.KeyRight,
	"arrowright": control.KeyRight,
	"keyd":       control.KeyRight,
	"d":          control.KeyRight,
}

// ParseKey accepts control key names, browser KeyboardEvent.key/code values
// for the arrows and WASD, and single WASD letters.
func ParseKey(name string) (control.Key, bool) {
	key, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]
	return key, ok
}
