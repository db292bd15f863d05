package rtpc

// Binding ties a named control parameter to a modulation target. Bindings
// are immutable and attached to event definitions, not to live emitters.
// When several bindings apply to one emitter they run in declaration order
// within a single publish.
type Binding struct {
	// Param is the control parameter name supplied by the RTPC source.
	Param string
	// Target is the destination field the shaped value modulates.
	Target Target
	// Curve shapes the raw control value before application.
	Curve Curve
}
