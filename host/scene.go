package host

import (
	"image"
	"image/color"
	"image/draw"
)

// Node is one element of an in-memory scene.
type Node struct {
	Name     string
	Payload  map[string]any
	Children []*Node
}

// DumpHierarchy renders the subtree as {name, payload, children} maps.
func (n *Node) DumpHierarchy() (any, error) {
	return n.dump(), nil
}

func (n *Node) dump() map[string]any {
	payload := map[string]any{"name": n.Name}
	for k, v := range n.Payload {
		payload[k] = v
	}
	out := map[string]any{"name": n.Name, "payload": payload}
	if len(n.Children) > 0 {
		children := make([]any, len(n.Children))
		for i, child := range n.Children {
			children[i] = child.dump()
		}
		out["children"] = children
	}
	return out
}

// StaticScreen is a fixed-size screen filled with one color.
// It stands in for a real renderer in headless hosts.
type StaticScreen struct {
	Width, Height int
	Fill          color.Color
}

func (s *StaticScreen) Size() (int, int) { return s.Width, s.Height }

func (s *StaticScreen) Capture() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	fill := s.Fill
	if fill == nil {
		fill = color.Black
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	return img, nil
}
