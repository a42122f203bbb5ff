// Package schema is the registry of invokable operations and their argument contracts.
//
// Every operation has a name, a description and an ordered list of parameters,
// each with a kind (string, integer, number, boolean, array of strings, object),
// a required flag and an optional set of allowed values. The registry is loaded
// once at startup and never mutated afterwards, so it is safe for concurrent
// reads without synchronization.
//
// Basic usage:
//
//	reg, err := schema.Default()
//	if err != nil {
//	    // the embedded catalog is broken
//	}
//
//	op, err := reg.Lookup("transfer_money")
//	if errors.Is(err, domain.ErrUnknownOperation) {
//	    // not in the catalog
//	}
//
// Casting is lenient by policy. Kind.TryCast reports whether a value was
// coerced, passed through unchanged (Fallback) or unusable (Failed), so callers
// can tell a clean cast from a raw value they have to forward as is:
//
//	res := schema.KindInteger.TryCast("1 000")
//	// res.Value == int64(1000), res.Status == schema.CastCoerced
//
//	res = schema.KindInteger.TryCast("a thousand")
//	// res.Value == "a thousand", res.Status == schema.CastFallback
//
// Catalogs are YAML (or JSON) documents, one entry per operation:
//
//	operations:
//	  - name: get_balance
//	    description: Total balance across all accounts.
//	    parameters:
//	      type: object
//	      properties:
//	        language: {type: string, enum: [ky, ru, en]}
//	      required: []
//
// Parameter blocks are checked as OpenAPI schemas when loaded.
package schema
