// Package lifecycle implements the state machine that gates endpoint
// start/stop. A [Manager] owns the mutex serializing structural transitions
// and the atomic running flag that worker loops poll without locking.
package lifecycle
