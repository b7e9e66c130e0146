package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

var ErrUnknownModel = errors.New("unknown model")

// ConfigUpdate carries the two settings a user may change. Nil fields keep the current value.
type ConfigUpdate struct {
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Apply validates u against the catalog and returns base with the changes applied.
// Temperatures outside [0,1] are rejected; values inside are snapped to the slider step.
func Apply(store Store, base chat.GenerationConfig, u ConfigUpdate) (chat.GenerationConfig, error) {
	next := base
	if u.Model != nil {
		id := strings.TrimSpace(*u.Model)
		if _, ok := store.FindByID(id); !ok {
			return base, fmt.Errorf("%w: %q", ErrUnknownModel, id)
		}
		next.Model = id
	}
	if u.Temperature != nil {
		t := *u.Temperature
		if math.IsNaN(t) || t < 0 || t > 1 {
			return base, fmt.Errorf("%w: got %v", chat.ErrTemperatureOutOfRange, t)
		}
		next.Temperature = chat.SnapTemperature(t)
	}
	return next, next.Validate()
}
