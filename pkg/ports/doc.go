/*
Package ports defines the driven ports (interfaces) of the call-mediation layer.

These interfaces decouple the pipeline from external implementations, allowing
the orchestrator to work with various storage backends, model providers and
tool-execution transports.

# Key Interfaces

  - SlotStore: persists pending slot-filling state per identity (Memory, Redis).
  - DistributedLocker: serializes turns of one identity across replicas.
  - Model: the language model, returning free text or structured calls.
  - Connector / ToolSession: one channel to the tool-execution service (MCP, exec).
  - Dispatcher and Reformatter: the dispatch and post-processing stages.
*/
package ports
