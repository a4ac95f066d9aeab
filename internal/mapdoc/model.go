// Package mapdoc holds the in-memory model behind the visual map editor: the
// document (layers, layer groups, points, paths, locations), the editor that
// owns and mutates it, the reversible commands applied through the undo
// history, and the normalization of persisted documents into canonical form.
package mapdoc

import (
	"encoding/json"
	"slices"

	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/models"
)

// ElementKind discriminates the three element collections.
type ElementKind string

const (
	KindPoint    ElementKind = "point"
	KindPath     ElementKind = "path"
	KindLocation ElementKind = "location"
)

// Valid reports whether k names an element collection.
func (k ElementKind) Valid() bool {
	switch k {
	case KindPoint, KindPath, KindLocation:
		return true
	}
	return false
}

// LayerType is the kind of content a layer is meant to hold.
type LayerType string

const (
	LayerBackground LayerType = "background"
	LayerPath       LayerType = "path"
	LayerPoint      LayerType = "point"
	LayerLocation   LayerType = "location"
	LayerRegion     LayerType = "region"
)

// ToolMode is the interaction mode of the editor.
type ToolMode string

const (
	ToolSelect   ToolMode = "select"
	ToolPoint    ToolMode = "point"
	ToolPath     ToolMode = "path"
	ToolLocation ToolMode = "location"
	ToolPan      ToolMode = "pan"
	ToolZoom     ToolMode = "zoom"
)

// ConnectionType is how the path tool joins two points.
type ConnectionType string

const (
	ConnectDirect     ConnectionType = "direct"
	ConnectOrthogonal ConnectionType = "orthogonal"
	ConnectCurve      ConnectionType = "curve"
)

// PathType is the drawing style of a path's control polyline.
type PathType string

const (
	PathLine   PathType = "line"
	PathCurve  PathType = "curve"
	PathBezier PathType = "bezier"
)

// LayerGroup owns layers by reference through Layer.LayerGroupID.
type LayerGroup struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

// Layer is a named, ordered grouping of elements.
type Layer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         LayerType `json:"type"`
	Visible      bool      `json:"visible"`
	Locked       bool      `json:"locked"`
	ZIndex       int       `json:"zIndex"`
	Opacity      float64   `json:"opacity"`
	LayerGroupID string    `json:"layerGroupId,omitempty"`
	ElementIDs   []string  `json:"elementIds"`
}

// UnmarshalJSON decodes a layer, defaulting an omitted visible flag to true,
// opacity to 1 and type to a point layer.
func (l *Layer) UnmarshalJSON(data []byte) error {
	type plain Layer
	v := plain{Visible: true, Opacity: 1, Type: LayerPoint}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = Layer(v)
	return nil
}

// Vertex is a path control point or a location polygon corner.
type Vertex struct {
	ID string   `json:"id"`
	X  float64  `json:"x"`
	Y  float64  `json:"y"`
	Z  *float64 `json:"z,omitempty"`
}

// Coord returns the vertex position.
func (v Vertex) Coord() geom.Point {
	return geom.Point{X: v.X, Y: v.Y, Z: cloneFloat(v.Z)}
}

type PointProps struct {
	Radius       float64 `json:"radius"`
	Color        string  `json:"color"`
	Icon         string  `json:"icon,omitempty"`
	Label        string  `json:"label,omitempty"`
	LabelVisible bool    `json:"labelVisible"`
}

// Point is a navigation point.
type Point struct {
	ID          string     `json:"id"`
	LayerID     string     `json:"layerId"`
	Name        string     `json:"name"`
	Code        string     `json:"code,omitempty"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Z           *float64   `json:"z,omitempty"`
	Type        string     `json:"type,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	EditorProps PointProps `json:"editorProps"`
	CreatedAt   string     `json:"createdAt,omitempty"`
	UpdatedAt   string     `json:"updatedAt,omitempty"`
}

// Coord returns the point position.
func (p Point) Coord() geom.Point {
	return geom.Point{X: p.X, Y: p.Y, Z: cloneFloat(p.Z)}
}

type PathGeometry struct {
	ControlPoints []Vertex `json:"controlPoints"`
	PathType      PathType `json:"pathType"`
}

type PathProps struct {
	StrokeColor  string  `json:"strokeColor"`
	StrokeWidth  float64 `json:"strokeWidth"`
	LineStyle    string  `json:"lineStyle"`
	ArrowVisible bool    `json:"arrowVisible"`
	Label        string  `json:"label,omitempty"`
	LabelVisible bool    `json:"labelVisible"`
}

// Path connects two points through a control polyline.
type Path struct {
	ID           string        `json:"id"`
	LayerID      string        `json:"layerId"`
	Name         string        `json:"name"`
	Code         string        `json:"code,omitempty"`
	StartPointID models.FlexID `json:"startPointId,omitempty"`
	EndPointID   models.FlexID `json:"endPointId,omitempty"`
	Length       *float64      `json:"length,omitempty"`
	Type         string        `json:"type,omitempty"`
	Description  string        `json:"description,omitempty"`
	Status       string        `json:"status"`
	Geometry     PathGeometry  `json:"geometry"`
	EditorProps  PathProps     `json:"editorProps"`
	CreatedAt    string        `json:"createdAt,omitempty"`
	UpdatedAt    string        `json:"updatedAt,omitempty"`
}

// Polyline returns the control points as coordinates.
func (p Path) Polyline() []geom.Point {
	out := make([]geom.Point, len(p.Geometry.ControlPoints))
	for i, v := range p.Geometry.ControlPoints {
		out[i] = v.Coord()
	}
	return out
}

type LocationGeometry struct {
	Vertices []Vertex `json:"vertices"`
	Closed   bool     `json:"closed"`
}

type LocationProps struct {
	FillColor    string  `json:"fillColor"`
	FillOpacity  float64 `json:"fillOpacity"`
	StrokeColor  string  `json:"strokeColor"`
	StrokeWidth  float64 `json:"strokeWidth"`
	Label        string  `json:"label,omitempty"`
	LabelVisible bool    `json:"labelVisible"`
}

// Location is a polygonal area such as a station or a charging spot.
type Location struct {
	ID             string           `json:"id"`
	LayerID        string           `json:"layerId"`
	Name           string           `json:"name"`
	Code           string           `json:"code,omitempty"`
	LocationTypeID models.FlexID    `json:"locationTypeId,omitempty"`
	X              *float64         `json:"x,omitempty"`
	Y              *float64         `json:"y,omitempty"`
	Z              *float64         `json:"z,omitempty"`
	BlockID        models.FlexID    `json:"blockId,omitempty"`
	Description    string           `json:"description,omitempty"`
	Status         string           `json:"status"`
	Geometry       LocationGeometry `json:"geometry"`
	EditorProps    LocationProps    `json:"editorProps"`
	CreatedAt      string           `json:"createdAt,omitempty"`
	UpdatedAt      string           `json:"updatedAt,omitempty"`
}

// Polygon returns the vertices as coordinates.
func (l Location) Polygon() []geom.Point {
	out := make([]geom.Point, len(l.Geometry.Vertices))
	for i, v := range l.Geometry.Vertices {
		out[i] = v.Coord()
	}
	return out
}

// Center returns the stored center, or the vertex centroid when the center is
// unset.
func (l Location) Center() geom.Point {
	if l.X != nil && l.Y != nil {
		return geom.Point{X: *l.X, Y: *l.Y, Z: cloneFloat(l.Z)}
	}
	return geom.Centroid(l.Polygon())
}

// MapInfo is the document header.
type MapInfo struct {
	ID          models.FlexID `json:"id"`
	Name        string        `json:"name"`
	Version     string        `json:"version"`
	Description string        `json:"description,omitempty"`
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	Scale       float64       `json:"scale"`
	OffsetX     float64       `json:"offsetX"`
	OffsetY     float64       `json:"offsetY"`
	ScaleX      float64       `json:"scaleX"`
	ScaleY      float64       `json:"scaleY"`
}

type Elements struct {
	Points    []Point    `json:"points"`
	Paths     []Path     `json:"paths"`
	Locations []Location `json:"locations"`
}

type Metadata struct {
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Author    string `json:"author,omitempty"`
}

// Document is the canonical serialized form of one map.
type Document struct {
	MapInfo      MapInfo         `json:"mapInfo"`
	LayerGroups  []LayerGroup    `json:"layerGroups"`
	Layers       []Layer         `json:"layers"`
	Elements     Elements        `json:"elements"`
	Metadata     Metadata        `json:"metadata"`
	VisualLayout json.RawMessage `json:"visualLayout,omitempty"`
}

// CanvasState is the viewport of the editor canvas.
type CanvasState struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// entity is implemented by the three element types so that the collection
// bookkeeping can be shared.
type entity[T any] interface {
	elementID() string
	layerOf() string
	clone() T
}

func (p Point) elementID() string    { return p.ID }
func (p Point) layerOf() string      { return p.LayerID }
func (p Path) elementID() string     { return p.ID }
func (p Path) layerOf() string       { return p.LayerID }
func (l Location) elementID() string { return l.ID }
func (l Location) layerOf() string   { return l.LayerID }

func (p Point) clone() Point {
	p.Z = cloneFloat(p.Z)
	return p
}

func (p Path) clone() Path {
	p.Length = cloneFloat(p.Length)
	p.Geometry.ControlPoints = cloneVertices(p.Geometry.ControlPoints)
	return p
}

func (l Location) clone() Location {
	l.X = cloneFloat(l.X)
	l.Y = cloneFloat(l.Y)
	l.Z = cloneFloat(l.Z)
	l.Geometry.Vertices = cloneVertices(l.Geometry.Vertices)
	return l
}

func (l Layer) clone() Layer {
	l.ElementIDs = cloneSlice(l.ElementIDs)
	return l
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := *d
	out.LayerGroups = cloneSlice(d.LayerGroups)
	out.Layers = cloneEach(d.Layers, Layer.clone)
	out.Elements = Elements{
		Points:    cloneEach(d.Elements.Points, Point.clone),
		Paths:     cloneEach(d.Elements.Paths, Path.clone),
		Locations: cloneEach(d.Elements.Locations, Location.clone),
	}
	out.VisualLayout = slices.Clone(d.VisualLayout)
	return &out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneVertices(vs []Vertex) []Vertex {
	if vs == nil {
		return nil
	}
	out := make([]Vertex, len(vs))
	for i, v := range vs {
		v.Z = cloneFloat(v.Z)
		out[i] = v
	}
	return out
}

// cloneSlice copies s and never returns nil, so snapshots always serialize
// collections as arrays.
func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func cloneEach[T any](s []T, fn func(T) T) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}
