// Package chart decides which of the panel states is shown to the user.
package chart

import (
	"fmt"

	"treemap/internal/core"
)

type State string

const (
	StateIncomplete State = "incomplete"
	StateEmpty      State = "empty"
	StateError      State = "error"
	StateReady      State = "ready"
)

const (
	MissingTable = "Table"
	MissingLabel = "Label field"
	MissingValue = "Value field"
)

// Input carries everything the panel needs. PropertiesErr takes precedence
// over everything else.
type Input struct {
	PropertiesErr error
	Table         string
	Selection     core.FieldSelection
	Records       []core.Record
}

// Panel is the evaluated panel.
type Panel struct {
	State   State          `json:"state"`
	Table   string         `json:"table,omitempty"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message,omitempty"`
	Missing []string       `json:"missing,omitempty"`
	Tree    *core.TreeNode `json:"tree,omitempty"`
	Stats   *core.Stats    `json:"stats,omitempty"`
}

// Evaluate picks the panel state and, when ready, aggregates the records.
func Evaluate(in Input) Panel {
	p := Panel{Table: in.Table, Title: in.Selection.Title}

	if in.PropertiesErr != nil {
		p.State = StateError
		p.Message = fmt.Sprintf("Error loading properties: %v", in.PropertiesErr)
		return p
	}

	if in.Table == "" {
		p.Missing = append(p.Missing, MissingTable)
	}
	if in.Selection.Label == "" {
		p.Missing = append(p.Missing, MissingLabel)
	}
	if in.Selection.Value == "" {
		p.Missing = append(p.Missing, MissingValue)
	}
	if len(p.Missing) > 0 {
		p.State = StateIncomplete
		p.Message = "Configure the panel to see the treemap."
		return p
	}

	if len(in.Records) == 0 {
		p.State = StateEmpty
		p.Message = fmt.Sprintf("No records in table %q.", in.Table)
		return p
	}

	tree := in.Selection.Aggregate(in.Records)
	stats := core.Summarize(tree)
	p.State = StateReady
	p.Tree = &tree
	p.Stats = &stats
	return p
}
