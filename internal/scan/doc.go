// Package scan drives a single library scan at a time.
//
// The Coordinator pages through the Immich library, hands every asset to the
// classifier, and persists verdicts that clear the confidence floor. Progress
// is published to an events sink and summarised in a RunState snapshot that
// API handlers read without touching worker-owned fields. Runs are rejected,
// never queued, while another is active; cancellation ends a run with the
// stopped status and keeps everything persisted so far.
package scan
