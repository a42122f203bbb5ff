// Package extract turns a model response into a normalized call proposal.
//
// Two shapes are supported. Structured calls, returned by backends with native
// tool calling, are preferred and mapped by one adapter per encoding
// (FromJSONArguments, FromObject, FromPairs). Backends without tool calling
// embed a marker in free text:
//
//	Албетте! [FUNC_CALL:name=transfer_money, amount=500, to_name='Aigul']
//
// Only the first well-formed marker is honored. A response with no marker is a
// direct text answer; a marker that cannot be split into name and key=value
// pairs yields a *ParseError, and callers show the original text instead.
package extract
