// Package api implements the HTTP handlers of the downstream surface:
// the JSON job listing and the server-sent-events push feed consumers
// use instead of polling.
package api
