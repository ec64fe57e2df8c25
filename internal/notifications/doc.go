// Package notifications delivers scan milestones via ntfy.
//
// The ntfy implementation posts plain-text messages to the configured topic
// URL and degrades to a no-op when no topic is set. Callers publish an Event
// with a loosely typed Payload so the scan coordinator and API layer share one
// small interface.
package notifications
