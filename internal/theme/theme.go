// Package theme resolves colour tokens to hex values and provides the
// light/dark parameters passed to the treemap renderer.
package theme

import (
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"treemap/internal/core"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// ParseMode maps user input to a Mode, defaulting to Light.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(Dark)) {
		return Dark
	}
	return Light
}

// Resolver turns a colour token into a CSS hex colour.
type Resolver interface {
	Resolve(token string) (hex string, ok bool)
}

// Palette maps named tokens to hex values. Literal "#rgb" and "#rrggbb"
// tokens are accepted as well.
type Palette map[string]string

var _ Resolver = Palette(nil)

var hues = []struct {
	name                          string
	bright, light1, light2, dark1 string
}{
	{"blue", "#2d7ff9", "#9cc7ff", "#cfdfff", "#2750ae"},
	{"cyan", "#18bfff", "#77d1f3", "#d0f0fd", "#0b76b7"},
	{"teal", "#20d9d2", "#72ddc3", "#c2f5e9", "#06a09b"},
	{"green", "#20c933", "#93e088", "#d1f7c4", "#338a17"},
	{"yellow", "#fcb400", "#ffd66e", "#ffeab6", "#b87503"},
	{"orange", "#ff6f2c", "#ffa981", "#fee2d5", "#d74d26"},
	{"red", "#f82b60", "#ff9eb7", "#ffdce5", "#ba1e45"},
	{"pink", "#ff08c2", "#f99de2", "#ffdaf6", "#b2158b"},
	{"purple", "#8b46ff", "#cdb0ff", "#ede2fe", "#6b1cb0"},
	{"gray", "#666666", "#cccccc", "#eeeeee", "#444444"},
}

// DefaultPalette returns the built-in tokens: for every hue the base name
// plus the Light1, Light2, Bright and Dark1 variants (e.g. "blueLight2").
func DefaultPalette() Palette {
	p := make(Palette, len(hues)*5)
	for _, h := range hues {
		p[h.name] = h.bright
		p[h.name+"Bright"] = h.bright
		p[h.name+"Light1"] = h.light1
		p[h.name+"Light2"] = h.light2
		p[h.name+"Dark1"] = h.dark1
	}
	return p
}

func (p Palette) Resolve(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	if strings.HasPrefix(token, "#") {
		c, err := colorful.Hex(token)
		if err != nil {
			return "", false
		}
		return c.Hex(), true
	}
	hex, ok := p[token]
	return hex, ok
}

// Decorate returns a copy of root with branch colour tokens resolved.
// Unknown tokens are dropped; leaves are left as they are.
func Decorate(root core.TreeNode, r Resolver) core.TreeNode {
	out := root
	if root.Children == nil {
		return out
	}
	out.Children = make([]core.TreeNode, len(root.Children))
	for i, child := range root.Children {
		out.Children[i] = Decorate(child, r)
	}
	if out.Color != "" {
		hex, ok := r.Resolve(out.Color)
		if !ok {
			hex = ""
		}
		out.Color = hex
	}
	return out
}

// Params is handed to the renderer untouched.
type Params struct {
	Mode       Mode   `json:"mode"`
	Background string `json:"background"`
	Text       string `json:"text"`
	Border     string `json:"border"`
	// Fallback fills nodes without a resolved colour.
	Fallback string `json:"fallback"`
}

var (
	lightBackground = colorful.Color{R: 1, G: 1, B: 1}
	lightText       = mustHex("#333333")
	darkBackground  = mustHex("#1e1e1e")
	darkText        = mustHex("#e6e6e6")
)

// ParamsFor returns the render parameters of mode.
func ParamsFor(mode Mode) Params {
	bg, fg := lightBackground, lightText
	fallback := "#cccccc"
	if mode == Dark {
		bg, fg = darkBackground, darkText
		fallback = "#444444"
	} else {
		mode = Light
	}
	return Params{
		Mode:       mode,
		Background: bg.Hex(),
		Text:       fg.Hex(),
		Border:     bg.BlendLab(fg, 0.2).Clamped().Hex(),
		Fallback:   fallback,
	}
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
