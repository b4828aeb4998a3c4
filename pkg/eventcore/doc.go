// Package eventcore provides an in-process event dispatch core:
// subscribers register per channel, emitted events pass through an
// ordered middleware pipeline, accepted events are buffered for replay
// to late subscribers, and aggregate performance metrics are exposed as
// immutable snapshots.
//
// Delivery is best-effort and at-most-once. The dispatch path never
// halts the host program: middleware and subscriber failures are
// contained per event and per callback and surfaced only through the
// configured logger and metrics recorder. The single user-visible error
// is ErrDestroyed, returned by lifecycle operations after Destroy.
package eventcore
