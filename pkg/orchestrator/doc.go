/*
Package orchestrator runs one conversation turn end to end.

A turn builds the model input (instruction, caller profile, recent history,
pending-call hint), invokes the model, and either returns its text or runs the
proposed call through extraction, coercion, slot filling, dispatch and
optional reformatting. Exactly one operation is dispatched per message.

Handle never returns an error: every failure becomes a short, fixed message in
the caller's language and is logged with the operation, identity and
truncated arguments.

	orch := orchestrator.New(model, catalog, sessions, dispatcher,
		orchestrator.WithReformatter(postprocess.New(model)),
	)
	resp := orch.Handle(ctx, orchestrator.TurnRequest{
		Profile: domain.Profile{ID: 7, Name: "Bakyt"},
		Message: "send 1000 to Aizada",
	})
*/
package orchestrator
