// Package tracker implements the user-facing standard and log operations.
//
// Every operation requires a signed-in user and validated input. After a
// write succeeds, the corresponding event is published synchronously:
// ir.LogMutation for log entries, ir.StandardChange for standards. Handler
// errors come back to the caller joined with the publish, so a failed
// rollup recompute fails the edit that triggered it even though the edit
// itself was stored.
package tracker
