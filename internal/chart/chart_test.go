package chart

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"treemap/internal/core"
)

func records() []core.Record {
	return []core.Record{
		core.NewRow("r1", map[string]any{"Name": "A", "Amount": 10.0}),
		core.NewRow("r2", map[string]any{"Name": "B", "Amount": 5.0}),
		core.NewRow("r3", map[string]any{"Name": "A", "Amount": 2.5}),
	}
}

var fullSelection = core.FieldSelection{Label: "Name", Value: "Amount", Title: "Root"}

func TestEvaluateStates(t *testing.T) {
	tests := []struct {
		name        string
		in          Input
		wantState   State
		wantMissing []string
		wantMessage string
	}{
		{
			name:        "properties error wins",
			in:          Input{PropertiesErr: errors.New("boom"), Table: "T", Selection: fullSelection, Records: records()},
			wantState:   StateError,
			wantMessage: "Error loading properties: boom",
		},
		{
			name:        "nothing configured",
			in:          Input{},
			wantState:   StateIncomplete,
			wantMissing: []string{MissingTable, MissingLabel, MissingValue},
			wantMessage: "Configure the panel to see the treemap.",
		},
		{
			name:        "value missing",
			in:          Input{Table: "T", Selection: core.FieldSelection{Label: "Name"}},
			wantState:   StateIncomplete,
			wantMissing: []string{MissingValue},
			wantMessage: "Configure the panel to see the treemap.",
		},
		{
			name:        "no records",
			in:          Input{Table: "Expenses", Selection: fullSelection},
			wantState:   StateEmpty,
			wantMessage: `No records in table "Expenses".`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Evaluate(tt.in)
			if p.State != tt.wantState {
				t.Fatalf("state = %s, want %s", p.State, tt.wantState)
			}
			if diff := cmp.Diff(tt.wantMissing, p.Missing); diff != "" {
				t.Fatalf("missing mismatch (-want +got):\n%s", diff)
			}
			if p.Message != tt.wantMessage {
				t.Fatalf("message = %q, want %q", p.Message, tt.wantMessage)
			}
			if p.Tree != nil {
				t.Fatal("only the ready state carries a tree")
			}
		})
	}
}

func TestEvaluateReady(t *testing.T) {
	p := Evaluate(Input{Table: "T", Selection: fullSelection, Records: records()})
	if p.State != StateReady {
		t.Fatalf("state = %s", p.State)
	}
	want := core.TreeNode{ID: "Root", Children: []core.TreeNode{core.Leaf("A", 12.5), core.Leaf("B", 5)}}
	if diff := cmp.Diff(want, *p.Tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
	if *p.Stats != (core.Stats{Total: 17.5, Leaves: 2}) {
		t.Fatalf("stats = %+v", *p.Stats)
	}
	if p.Title != "Root" || p.Table != "T" {
		t.Fatalf("unexpected header %q %q", p.Title, p.Table)
	}
}
