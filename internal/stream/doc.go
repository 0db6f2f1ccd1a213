// Package stream defines the transport boundary for analysis lifecycle
// events: a topic-based Bus with cancellable subscriptions, an
// in-memory implementation used for fan-out inside the process, and a
// Relay that feeds the bus from the upstream server-sent-events
// endpoint.
//
// Delivery semantics are at-least-once: frames may be duplicated or
// dropped across reconnects, and subscribers are expected to be
// idempotent. Ordering is guaranteed only within a single connection.
package stream
