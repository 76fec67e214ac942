package agent

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[Phase]string{
	PhaseClarification: "schemas/clarification.json",
	PhaseFeasibility:   "schemas/feasibility.json",
	PhaseAssumptions:   "schemas/assumptions.json",
	PhasePlanning:      "schemas/plan.json",
	PhaseRefinement:    "schemas/plan.json",
}

var (
	schemaOnce sync.Once
	schemas    map[Phase]*jsonschema.Schema
	schemaErr  error
)

func compiledSchemas() (map[Phase]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		// Planning and refinement share plan.json; each file is registered
		// with the compiler exactly once.
		byFile := make(map[string]*jsonschema.Schema, len(schemaFiles))
		out := make(map[Phase]*jsonschema.Schema, len(schemaFiles))
		for phase, file := range schemaFiles {
			if sch, ok := byFile[file]; ok {
				out[phase] = sch
				continue
			}
			raw, err := schemaFS.ReadFile(file)
			if err != nil {
				schemaErr = err
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", file, err)
				return
			}
			if err := c.AddResource(file, doc); err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", file, err)
				return
			}
			sch, err := c.Compile(file)
			if err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", file, err)
				return
			}
			byFile[file] = sch
			out[phase] = sch
		}
		schemas = out
	})
	return schemas, schemaErr
}

// ValidatePhasePayload checks a generator payload against the target
// phase's schema and the semantic rules the schema cannot express (dense
// 1..N day numbering). A non-nil error means the payload must not be
// finalized.
func ValidatePhasePayload(phase Phase, raw json.RawMessage) error {
	all, err := compiledSchemas()
	if err != nil {
		return err
	}
	sch, ok := all[phase]
	if !ok {
		return fmt.Errorf("no schema for phase %q", phase)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("payload failed %s schema: %w", phase, err)
	}

	if phase == PhasePlanning || phase == PhaseRefinement {
		var plan TravelPlan
		if err := json.Unmarshal(raw, &plan); err != nil {
			return err
		}
		for i, day := range plan.Days {
			if day.Day != i+1 {
				return fmt.Errorf("malformed day index: position %d has day %d", i+1, day.Day)
			}
		}
	}
	return nil
}
