package core

// Stats is a compact summary of an aggregated tree.
type Stats struct {
	Total    float64 `json:"total"`
	Leaves   int     `json:"leaves"`
	Branches int     `json:"branches"`
}

// Summarize walks the tree below the root.
func Summarize(root TreeNode) Stats {
	var s Stats
	var walk func(nodes []TreeNode)
	walk = func(nodes []TreeNode) {
		for _, n := range nodes {
			if n.Children != nil {
				s.Branches++
				walk(n.Children)
				continue
			}
			s.Leaves++
			if n.Value != nil {
				s.Total = addAmounts(s.Total, *n.Value)
			}
		}
	}
	walk(root.Children)
	return s
}
