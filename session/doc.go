// Package session implements the bounded multi-turn orchestration loop for
// goal-driven web navigation.
//
// The orchestrator turns (goal, page context, history) into exactly one
// validated next action per call. Hard guardrails cap steps and feedback per
// session and are checked before any model call. History is compressed into a
// deterministic sliding window, model output is coerced field by field into a
// total action value, and every state change is committed atomically with an
// optimistic version check.
package session
