// Package events holds the authoring-layer boundary: designer-defined event
// definitions resolved by name at trigger time.
package events

import (
	"github.com/ljramones/dynamis-audio/pkg/emitter"
	"github.com/ljramones/dynamis-audio/pkg/rtpc"
)

// Definition is one designer-authored sound event. Definitions are
// registered once at load time and treated as immutable afterwards.
type Definition struct {
	// Name resolves the event at trigger time.
	Name string `yaml:"name" json:"name"`

	// Gain is the default master gain applied after spawn.
	Gain float64 `yaml:"gain" json:"gain"`

	// Pitch is the default pitch multiplier.
	Pitch float64 `yaml:"pitch" json:"pitch"`

	// Looping marks the sound as a loop rather than a one-shot.
	Looping bool `yaml:"looping" json:"looping"`

	// Tag is the emitter category (e.g. "footsteps", "weapons").
	Tag string `yaml:"tag" json:"tag"`

	// Importance is the priority class for voice arbitration.
	Importance emitter.Importance `yaml:"importance" json:"importance"`

	// Bindings are applied in declaration order within one publish.
	Bindings []rtpc.Binding `yaml:"-" json:"-"`
}
