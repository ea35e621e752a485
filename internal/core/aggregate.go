package core

// labelTotal is the running sum for one label, plus the colour carried by
// the latest record that contributed to it.
type labelTotal struct {
	value float64
	color string
}

// orderedTotals sums values per label and remembers first-seen order.
type orderedTotals struct {
	byLabel map[string]*labelTotal
	order   []string
}

func newOrderedTotals() *orderedTotals {
	return &orderedTotals{byLabel: make(map[string]*labelTotal)}
}

func (t *orderedTotals) add(label string, value float64, color string) {
	entry, seen := t.byLabel[label]
	if !seen {
		entry = &labelTotal{}
		t.byLabel[label] = entry
		t.order = append(t.order, label)
	}
	entry.value = addAmounts(entry.value, value)
	entry.color = color
}

func (t *orderedTotals) leaves() []TreeNode {
	out := make([]TreeNode, 0, len(t.order))
	for _, label := range t.order {
		out = append(out, Leaf(label, t.byLabel[label].value))
	}
	return out
}

// Aggregate turns records into a treemap tree rooted at rootTitle.
//
// Values of records sharing a label (within the same group when groupBy is
// set) are summed; non-numeric and negative values contribute zero. Leaves
// and branches keep the order in which their label or group first appeared.
// A branch takes its colour from its first child. Unset label or value
// fields, or no records, produce an empty root.
func Aggregate(records []Record, label, value, groupBy, rootTitle string) TreeNode {
	root := TreeNode{ID: rootTitle, Children: []TreeNode{}}
	if label == "" || value == "" || len(records) == 0 {
		return root
	}

	if groupBy == "" {
		totals := newOrderedTotals()
		for _, rec := range records {
			if rec == nil {
				continue
			}
			totals.add(recordLabel(rec, label), cellAmount(rec.CellValue(value)), "")
		}
		root.Children = totals.leaves()
		return root
	}

	groups := make(map[string]*orderedTotals)
	var groupOrder []string
	for _, rec := range records {
		if rec == nil {
			continue
		}
		g := ResolveGroup(rec.CellValue(groupBy))
		totals, seen := groups[g.Name()]
		if !seen {
			totals = newOrderedTotals()
			groups[g.Name()] = totals
			groupOrder = append(groupOrder, g.Name())
		}
		totals.add(recordLabel(rec, label), cellAmount(rec.CellValue(value)), g.Color())
	}

	for _, name := range groupOrder {
		totals := groups[name]
		branch := TreeNode{ID: name, Children: totals.leaves()}
		if len(totals.order) > 0 {
			branch.Color = totals.byLabel[totals.order[0]].color
		}
		root.Children = append(root.Children, branch)
	}
	return root
}

// Aggregate applies the selection to records.
func (s FieldSelection) Aggregate(records []Record) TreeNode {
	return Aggregate(records, s.Label, s.Value, s.GroupBy, s.Title)
}

func recordLabel(rec Record, field string) string {
	if l := rec.CellValueAsString(field); l != "" {
		return l
	}
	return DefaultLabel
}
