// Package llm defines the model invocation contract used by the session
// orchestrator: a single forced-structured-output call with token accounting,
// typed upstream error codes, and a rate-limiting decorator.
package llm
