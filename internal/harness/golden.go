package harness

import (
	"context"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mpcgraph/internal/ir"
)

// TraceSnapshot captures the reproducible part of a scenario trace.
// Context hashes are left out so a golden file survives changes to the
// compiled form that keep the outputs.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// toDoc converts the snapshot for canonical JSON serialization.
func (s *TraceSnapshot) toDoc() ir.Doc {
	events := make(ir.DocArray, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.DocObject{
			"type": ir.DocString(ev.Type),
			"seq":  ir.DocInt(ev.Seq),
		}
		if ev.RunID != "" {
			obj["run_id"] = ir.DocString(ev.RunID)
		}
		if ev.Outputs != nil {
			obj["outputs"] = literalDoc(ev.Outputs)
		}
		if ev.Stage != "" {
			obj["stage"] = ir.DocString(ev.Stage)
		}
		if ev.Code != "" {
			obj["code"] = ir.DocString(ev.Code)
		}
		events[i] = obj
	}
	return ir.DocObject{
		"scenario": ir.DocString(s.ScenarioName),
		"trace":    events,
	}
}

// literalDoc converts an output literal. Unsigned values above the int64
// range are written as decimal strings.
func literalDoc(lit any) ir.Doc {
	switch v := lit.(type) {
	case int64:
		return ir.DocInt(v)
	case uint64:
		if v > math.MaxInt64 {
			return ir.DocString(ir.FormatScalarLiteral(ir.UINT64, v))
		}
		return ir.DocInt(int64(v))
	case []any:
		arr := make(ir.DocArray, len(v))
		for i, e := range v {
			arr[i] = literalDoc(e)
		}
		return arr
	case map[string]any:
		obj := make(ir.DocObject, len(v))
		for k, e := range v {
			obj[k] = literalDoc(e)
		}
		return obj
	default:
		return ir.DocString("<invalid>")
	}
}

// SnapshotJSON returns the canonical JSON of a result's trace.
func SnapshotJSON(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toDoc())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
