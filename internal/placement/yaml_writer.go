package placement

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// WriteFile writes the plan to path as YAML.
func (p *Plan) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return p.WriteYAML(f)
}

// WriteYAML writes the plan as YAML with keys in a fixed order and one
// flow-style line per placement, so diffs between runs stay readable.
func (p *Plan) WriteYAML(w io.Writer) error {
	fmt.Fprintf(w, "# Maze placement plan\n")
	fmt.Fprintf(w, "# Cells: %d, subgoals: %d, waypoints: %d\n\n", len(p.Placements), len(p.SubgoalPoints), len(p.Waypoints))

	root := &yaml.Node{Kind: yaml.MappingNode}

	start := &yaml.Node{Kind: yaml.MappingNode}
	addNodeField(start, "pos", pointNode(p.Start.Pos))
	addFloatField(start, "pitch", p.Start.Pitch)
	addFloatField(start, "yaw", p.Start.Yaw)
	addNodeField(root, "start", start)

	if len(p.QuitPoints) > 0 {
		addNodeField(root, "quit_points", poiSequence(p.QuitPoints))
	}
	if len(p.SubgoalPoints) > 0 {
		addNodeField(root, "subgoals", poiSequence(p.SubgoalPoints))
	}

	if len(p.Waypoints) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, m := range p.Waypoints {
			n := &yaml.Node{Kind: yaml.MappingNode}
			addStringField(n, "name", m.Name)
			addStringField(n, "kind", m.Kind)
			addNodeField(n, "pos", pointNode(m.Pos))
			if m.Kind == "item" {
				addStringField(n, "item", m.Item)
			} else {
				addStringField(n, "block", m.Block)
				addIntField(n, "height", m.Height)
			}
			if m.Colour != "" {
				addStringField(n, "colour", m.Colour)
			}
			if m.Variant != "" {
				addStringField(n, "variant", m.Variant)
			}
			seq.Content = append(seq.Content, n)
		}
		addNodeField(root, "waypoints", seq)
	}

	placements := &yaml.Node{Kind: yaml.SequenceNode}
	for _, pl := range p.Placements {
		n := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
		addIntField(n, "x", pl.Pos.X)
		addIntField(n, "y", pl.Pos.Y)
		addIntField(n, "z", pl.Pos.Z)
		addStringField(n, "role", pl.Role)
		addStringField(n, "block", pl.Block)
		if pl.Colour != "" {
			addStringField(n, "colour", pl.Colour)
		}
		if pl.Variant != "" {
			addStringField(n, "variant", pl.Variant)
		}
		addIntField(n, "height", pl.Height)
		addIntField(n, "size", pl.Size)
		placements.Content = append(placements.Content, n)
	}
	addNodeField(root, "placements", placements)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

func poiSequence(points []PointOfInterest) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, poi := range points {
		n := &yaml.Node{Kind: yaml.MappingNode}
		addStringField(n, "name", poi.Name)
		addNodeField(n, "pos", pointNode(poi.Pos))
		addFloatField(n, "tolerance", poi.Tolerance)
		addStringField(n, "description", poi.Description)
		seq.Content = append(seq.Content, n)
	}
	return seq
}

func pointNode(p Point) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
	addFloatField(n, "x", p.X)
	addFloatField(n, "y", p.Y)
	addFloatField(n, "z", p.Z)
	return n
}

func addNodeField(node *yaml.Node, key string, value *yaml.Node) {
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

func addStringField(node *yaml.Node, key, value string) {
	addNodeField(node, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func addIntField(node *yaml.Node, key string, value int) {
	addNodeField(node, key, &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.Itoa(value)})
}

func addFloatField(node *yaml.Node, key string, value float64) {
	addNodeField(node, key, &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(value, 'f', -1, 64)})
}
