package core

import "strings"

// GroupKind tags the variant held by a GroupValue.
type GroupKind int

const (
	GroupMissing GroupKind = iota
	GroupPlain
	GroupTagged
)

// GroupValue is a group cell resolved once per record.
type GroupValue struct {
	Kind  GroupKind
	name  string
	color string
}

func PlainGroup(name string) GroupValue {
	return GroupValue{Kind: GroupPlain, name: name}
}

func TaggedGroup(name, color string) GroupValue {
	return GroupValue{Kind: GroupTagged, name: name, color: color}
}

// ResolveGroup inspects a raw group cell. Tags need a non-empty name and
// strings must be non-empty; anything else is Missing.
func ResolveGroup(v any) GroupValue {
	switch c := v.(type) {
	case Tag:
		if c.Name != "" {
			return TaggedGroup(c.Name, c.Color)
		}
	case *Tag:
		if c != nil && c.Name != "" {
			return TaggedGroup(c.Name, c.Color)
		}
	case string:
		if strings.TrimSpace(c) != "" {
			return PlainGroup(c)
		}
	}
	return GroupValue{Kind: GroupMissing}
}

// Name is the branch id for this group.
func (g GroupValue) Name() string {
	if g.Kind == GroupMissing {
		return DefaultGroup
	}
	return g.name
}

// Color is the colour token of a tagged group, "" otherwise.
func (g GroupValue) Color() string {
	if g.Kind != GroupTagged {
		return ""
	}
	return g.color
}
