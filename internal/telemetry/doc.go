// Package telemetry publishes runner progress to a socket.io server. A
// Publisher is a runner observer that emits one event per reset and one per
// completed step.
package telemetry
