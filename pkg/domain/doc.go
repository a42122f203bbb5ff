/*
Package domain contains the core data model of the call-mediation layer.

It defines the values that flow through one conversation turn, from the
model's proposal to the text returned to the caller. The package is kept
free of I/O and third-party dependencies.

# Key Entities

  - CallProposal: an operation name plus raw arguments, as proposed by the model.
  - ValidatedCall: a proposal whose arguments were filtered and cast against the schema.
  - PendingSlotState: the partial arguments of an operation awaiting more input.
  - ToolRequest / ToolResult: the wire-level exchange with the tool-execution service.
  - Profile / Turn: the caller identity and recent conversation passed in by the web layer.
*/
package domain
