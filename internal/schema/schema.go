// Package schema validates exported trace documents against an embedded
// CUE schema, so malformed files fail loudly before any comparison runs.
package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed trace.cue
var traceSchemaSource string

var (
	traceOnce sync.Once
	traceDef  cue.Value
	traceErr  error
)

// traceDefinition compiles the embedded schema once and returns the
// #Trace definition.
func traceDefinition() (cue.Value, error) {
	traceOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(traceSchemaSource, cue.Filename("trace.cue"))
		if err := v.Err(); err != nil {
			traceErr = fmt.Errorf("compiling trace schema: %w", err)
			return
		}
		traceDef = v.LookupPath(cue.ParsePath("#Trace"))
		if !traceDef.Exists() {
			traceErr = fmt.Errorf("trace schema is missing the #Trace definition")
		}
	})
	return traceDef, traceErr
}

// ValidateTrace checks that raw is a JSON document conforming to the
// trace event array schema. The returned error carries CUE's own
// diagnostics, which name the offending field and constraint.
func ValidateTrace(raw []byte) error {
	def, err := traceDefinition()
	if err != nil {
		return err
	}
	expr, err := cuejson.Extract("trace.json", raw)
	if err != nil {
		return fmt.Errorf("parsing trace document: %w", err)
	}
	doc := def.Context().BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("building trace document: %w", err)
	}
	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return fmt.Errorf("trace schema violation: %w", err)
	}
	return nil
}
