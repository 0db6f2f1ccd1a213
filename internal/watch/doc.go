// Package watch implements the task-status reconciliation engine: the
// registry of in-flight analysis jobs, the ingress that applies stream
// events to it, the notification policy for completed jobs, and the
// engine that merges the one-shot snapshot with the live event feed
// without duplicate entries, missed transitions, or duplicate
// notifications.
package watch
