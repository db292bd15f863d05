// Package acoustics carries acoustic simulation data into the engine core.
//
// The simulation itself (ray tracing, rooms, portals) lives outside this
// module. What crosses the boundary is small: per-emitter scoring inputs
// refreshed on each score update, and asynchronous acoustic events that are
// queued into a fixed-capacity ring and drained once per DSP block.
package acoustics
