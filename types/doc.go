// Package types defines the shared data model of the webpilot orchestrator:
// sessions and their append-only turn logs, the closed action-kind and status
// enums, validated actions, untrusted page context, and the structured error
// taxonomy used across packages.
package types
