// Package schemaguard is the core of a schema registry: it detects schema
// formats, validates JSON Schema, Avro and Protobuf schema text, and checks
// new schema versions for compatibility against their history.
//
// The root package holds the value types shared by every component:
// formats, versions, validation results, compatibility results and the
// error taxonomy. Implementations live in subpackages:
//
//   - engine: the seven-stage validation pipeline and custom rule registry
//   - validator/jsonschema, validator/avro, validator/protobuf: format validators
//   - compat: the compatibility checker
//   - rules: reusable custom rules
//   - cmd/schemaguard: command line front end
//
// Data-dependent problems are reported as values in a ValidationResult or
// CompatibilityResult. Go errors are reserved for misuse such as invalid
// configuration, unknown formats or unknown compatibility modes.
//
// Typical usage:
//
//	eng, err := engine.New(engine.WithConfig(sg.DefaultConfig()))
//	res := eng.Validate(ctx, text, sg.JSONSchema)
//	if err := res.Err(); err != nil {
//		// inspect sg.AsValidationErrors(err)
//	}
//
//	cr, err := eng.CheckCompatibility(ctx, candidate, history, sg.ModeBackward)
package schemaguard
