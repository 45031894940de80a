package placement

import (
	"strconv"

	"github.com/lawnchairsociety/towermaze/internal/grid"
	"github.com/lawnchairsociety/towermaze/internal/mazespec"
)

// Marker flags a waypoint cell, either with a block or with a dropped item.
type Marker struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Cell    grid.Pos `json:"cell"`
	Pos     Point    `json:"pos"`
	Block   string   `json:"block,omitempty"`
	Colour  string   `json:"colour,omitempty"`
	Variant string   `json:"variant,omitempty"`
	Height  int      `json:"height,omitempty"`
	Item    string   `json:"item,omitempty"`
}

// markerSite is where a marker goes.
type markerSite struct {
	Index int
	Cell  grid.Pos
	Pos   Point
}

type markerFactory func(site markerSite, spec *mazespec.WaypointSpec, palette mazespec.Palette) Marker

// markerFactories maps a waypoint marker kind to its constructor.
var markerFactories = map[string]markerFactory{
	"block": newBlockMarker,
	"item":  newItemMarker,
}

func newBlockMarker(site markerSite, _ *mazespec.WaypointSpec, palette mazespec.Palette) Marker {
	return Marker{
		Name:    markerName(site.Index),
		Kind:    "block",
		Cell:    site.Cell,
		Pos:     site.Pos,
		Block:   palette.Waypoint.Block,
		Colour:  palette.Waypoint.Colour,
		Variant: palette.Waypoint.Variant,
		Height:  max(palette.Waypoint.Height, 1),
	}
}

func newItemMarker(site markerSite, spec *mazespec.WaypointSpec, _ mazespec.Palette) Marker {
	return Marker{
		Name:   markerName(site.Index),
		Kind:   "item",
		Cell:   site.Cell,
		Pos:    site.Pos,
		Item:   spec.Item.Type,
		Colour: spec.Item.Colour,
	}
}

func markerName(i int) string {
	return "waypoint_" + strconv.Itoa(i)
}
