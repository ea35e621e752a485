package theme

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"treemap/internal/core"
)

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"dark":  Dark,
		" DARK": Dark,
		"light": Light,
		"":      Light,
		"sepia": Light,
	}
	for in, want := range tests {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPaletteResolve(t *testing.T) {
	p := DefaultPalette()
	tests := []struct {
		token  string
		want   string
		wantOK bool
	}{
		{"blueLight2", "#cfdfff", true},
		{"blue", "#2d7ff9", true},
		{"grayDark1", "#444444", true},
		{"#ABC", "#aabbcc", true},
		{"#Ff0000", "#ff0000", true},
		{"#zzzzzz", "", false},
		{"mauve", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := p.Resolve(tt.token)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.token, got, ok, tt.want, tt.wantOK)
		}
	}
	if len(p) != 50 {
		t.Errorf("expected 50 tokens, got %d", len(p))
	}
}

func TestDecorate(t *testing.T) {
	root := core.TreeNode{ID: "Root", Children: []core.TreeNode{
		{ID: "G1", Color: "blueLight2", Children: []core.TreeNode{core.Leaf("A", 15)}},
		{ID: "G2", Color: "unknown", Children: []core.TreeNode{core.Leaf("B", 1)}},
		core.Leaf("C", 2),
	}}
	got := Decorate(root, DefaultPalette())
	want := core.TreeNode{ID: "Root", Children: []core.TreeNode{
		{ID: "G1", Color: "#cfdfff", Children: []core.TreeNode{core.Leaf("A", 15)}},
		{ID: "G2", Children: []core.TreeNode{core.Leaf("B", 1)}},
		core.Leaf("C", 2),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Decorate mismatch (-want +got):\n%s", diff)
	}
	if root.Children[0].Color != "blueLight2" {
		t.Fatal("Decorate must not modify its input")
	}
}

func TestDecorateEmptyRoot(t *testing.T) {
	got := Decorate(core.TreeNode{ID: "Root", Children: []core.TreeNode{}}, DefaultPalette())
	if got.Children == nil || len(got.Children) != 0 {
		t.Fatalf("empty root must keep an empty children slice, got %#v", got.Children)
	}
}

func TestParamsFor(t *testing.T) {
	light := ParamsFor(Light)
	if light.Background != "#ffffff" || light.Text != "#333333" || light.Mode != Light {
		t.Fatalf("unexpected light params %+v", light)
	}
	dark := ParamsFor(Dark)
	if dark.Background != "#1e1e1e" || dark.Mode != Dark {
		t.Fatalf("unexpected dark params %+v", dark)
	}
	if light.Border == light.Background || light.Border == light.Text {
		t.Fatalf("border should sit between background and text, got %s", light.Border)
	}
	if ParamsFor("bogus").Mode != Light {
		t.Fatal("unknown mode should fall back to light")
	}
}
