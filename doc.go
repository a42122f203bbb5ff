/*
Package teller is a call-mediation layer for a banking assistant.

A language model reads the customer's message and proposes an operation,
either as a native tool call or as a marked block in its text. Teller
validates the proposal against the operation catalog, coerces loosely typed
arguments, and when required arguments are missing keeps the partial call as
pending state for that customer and asks for the rest. A complete call is
sent to the tool-execution service over MCP on a fresh channel, bounded by a
timeout and a circuit breaker, and the result is optionally rewritten into a
conversational reply in the customer's language.

# Layout

  - pkg/schema: the operation catalog and parameter kinds.
  - pkg/extract, pkg/coerce: turning model output into validated calls.
  - pkg/session: per-customer pending state and locking.
  - pkg/dispatch: calling the tool service.
  - pkg/orchestrator: one conversation turn, end to end.
  - pkg/adapters: OpenAI-compatible models, MCP, the HTTP API, and slot
    stores in memory, on disk, in Redis or in PostgreSQL.
  - internal/bank: the demo banking operations served by "teller tools".

# Usage

The teller command wires everything from a YAML configuration:

	teller tools                  # MCP tool server over stdio
	teller serve -c teller.yaml   # JSON API for the web layer
	teller chat --user-id 1       # talk to it in the terminal
*/
package teller
