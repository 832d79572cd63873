package types

// Event is a structured record of a state change produced by one of the
// native engines. Attributes are flat string pairs so downstream consumers
// (RPC streams, log emitters) need no module-specific decoding.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
