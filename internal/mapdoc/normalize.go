package mapdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/models"
)

// maxEnvelopeDepth bounds how many {code,msg,data} wrappers are peeled off.
const maxEnvelopeDepth = 3

type object = map[string]json.RawMessage

// shape recognizes one layout of persisted map data and builds a document
// from it.
type shape struct {
	name  string
	match func(obj object) bool
	build func(n *normalizer, obj object) (*Document, error)
}

// documentShapes lists the recognized layouts in match order.
func documentShapes() []shape {
	return []shape{
		{name: "envelope", match: matchEnvelope, build: (*normalizer).unwrapEnvelope},
		{name: "mapInfo", match: matchMapInfo, build: (*normalizer).buildMapInfo},
		{name: "flat", match: matchFlat, build: (*normalizer).buildFlat},
	}
}

type normalizer struct {
	mapID string
	now   time.Time
	depth int
}

// Normalize converts persisted map data in any recognized layout into a
// canonical document. mapID fills the header id when the data carries none.
// Data matching no layout fails with ErrInvalidDocument.
func Normalize(data []byte, mapID string, now time.Time) (*Document, error) {
	n := &normalizer{mapID: mapID, now: now}
	doc, err := n.run(data)
	if err != nil {
		return nil, err
	}
	reconcile(doc)
	return doc, nil
}

func (n *normalizer) run(data []byte) (*Document, error) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if obj == nil {
		return nil, ErrInvalidDocument
	}
	for _, s := range documentShapes() {
		if s.match(obj) {
			return s.build(n, obj)
		}
	}
	return nil, ErrInvalidDocument
}

func has(obj object, key string) bool {
	raw, ok := obj[key]
	return ok && !isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func matchEnvelope(obj object) bool {
	if has(obj, "mapInfo") {
		return false
	}
	return has(obj, "code") || isObject(obj["data"])
}

func matchMapInfo(obj object) bool {
	return isObject(obj["mapInfo"])
}

func matchFlat(obj object) bool {
	return has(obj, "name") || isObject(obj["visualLayout"])
}

type envelope struct {
	Code *flexFloat      `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (n *normalizer) unwrapEnvelope(obj object) (*Document, error) {
	var env envelope
	if err := decodeObject(obj, &env); err != nil {
		return nil, err
	}
	if env.Code != nil && env.Code.v != 200 {
		if env.Code.v == 404 || isNotFoundMessage(env.Msg) {
			return nil, fmt.Errorf("%w: %s", ErrMapNotFound, env.Msg)
		}
		return nil, fmt.Errorf("%w: code %v: %s", ErrInvalidDocument, env.Code.v, env.Msg)
	}
	if !isObject(env.Data) {
		return nil, fmt.Errorf("%w: empty response", ErrMapNotFound)
	}
	n.depth++
	if n.depth > maxEnvelopeDepth {
		return nil, fmt.Errorf("%w: envelopes nested too deep", ErrInvalidDocument)
	}
	return n.run(env.Data)
}

// isNotFoundMessage recognizes the service's "does not exist" replies.
func isNotFoundMessage(msg string) bool {
	return strings.Contains(msg, "不存在") || strings.Contains(strings.ToLower(msg), "not exist")
}

// flexFloat decodes a number that may be sent as a JSON string.
type flexFloat struct {
	v   float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable strings count as absent.
		return nil
	}
	f.v, f.set = v, true
	return nil
}

// or returns the first set, non-zero value, else def.
func or(def float64, vals ...flexFloat) float64 {
	for _, f := range vals {
		if f.set && f.v != 0 {
			return f.v
		}
	}
	return def
}

type rawMapInfo struct {
	ID           models.FlexID `json:"id"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	MapVersion   string        `json:"mapVersion"`
	ModelVersion string        `json:"modelVersion"`
	Description  string        `json:"description"`
	Width        flexFloat     `json:"width"`
	Height       flexFloat     `json:"height"`
	LayoutWidth  flexFloat     `json:"layoutWidth"`
	LayoutHeight flexFloat     `json:"layoutHeight"`
	Scale        flexFloat     `json:"scale"`
	OffsetX      flexFloat     `json:"offsetX"`
	OffsetY      flexFloat     `json:"offsetY"`
	ScaleX       flexFloat     `json:"scaleX"`
	ScaleY       flexFloat     `json:"scaleY"`
	CreateTime   string        `json:"createTime"`
	UpdateTime   string        `json:"updateTime"`
}

func (n *normalizer) buildMapInfo(obj object) (*Document, error) {
	var info rawMapInfo
	if err := json.Unmarshal(obj["mapInfo"], &info); err != nil {
		return nil, fmt.Errorf("%w: mapInfo: %v", ErrInvalidDocument, err)
	}
	var meta Metadata
	if isObject(obj["metadata"]) {
		if err := json.Unmarshal(obj["metadata"], &meta); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidDocument, err)
		}
	}
	doc := &Document{
		MapInfo: MapInfo{
			ID:          n.id(info.ID),
			Name:        firstString(info.Name, DefaultMapName),
			Version:     firstString(info.Version, info.MapVersion, info.ModelVersion, DefaultMapVersion),
			Description: info.Description,
			Width:       or(defaultWidth, info.Width, info.LayoutWidth),
			Height:      or(defaultHeight, info.Height, info.LayoutHeight),
			Scale:       or(1, info.Scale),
			OffsetX:     info.OffsetX.v,
			OffsetY:     info.OffsetY.v,
			ScaleX:      or(defaultScaleX, info.ScaleX),
			ScaleY:      or(defaultScaleY, info.ScaleY),
		},
		Metadata: Metadata{
			CreatedAt: firstString(meta.CreatedAt, info.CreateTime, n.stamp()),
			UpdatedAt: firstString(meta.UpdatedAt, info.UpdateTime, n.stamp()),
			Author:    meta.Author,
		},
	}
	if isObject(obj["visualLayout"]) {
		doc.VisualLayout = slices.Clone(obj["visualLayout"])
	}
	var elements object
	if isObject(obj["elements"]) {
		if err := json.Unmarshal(obj["elements"], &elements); err != nil {
			return nil, fmt.Errorf("%w: elements: %v", ErrInvalidDocument, err)
		}
	}
	pick := func(key string) json.RawMessage {
		if has(elements, key) {
			return elements[key]
		}
		return obj[key]
	}
	if err := decodeCollections(doc, obj["layerGroups"], obj["layers"], pick("points"), pick("paths"), pick("locations")); err != nil {
		return nil, err
	}
	return doc, nil
}

type rawFlat struct {
	Name         string          `json:"name"`
	MapID        models.FlexID   `json:"mapId"`
	ModelVersion string          `json:"modelVersion"`
	Description  string          `json:"description"`
	CreateTime   string          `json:"createTime"`
	UpdateTime   string          `json:"updateTime"`
	VisualLayout json.RawMessage `json:"visualLayout"`
}

type rawVisualLayout struct {
	ScaleX      flexFloat       `json:"scaleX"`
	ScaleY      flexFloat       `json:"scaleY"`
	Layers      json.RawMessage `json:"layers"`
	LayerGroups json.RawMessage `json:"layerGroups"`
}

func (n *normalizer) buildFlat(obj object) (*Document, error) {
	var flat rawFlat
	if err := decodeObject(obj, &flat); err != nil {
		return nil, err
	}
	var layout rawVisualLayout
	if isObject(flat.VisualLayout) {
		if err := json.Unmarshal(flat.VisualLayout, &layout); err != nil {
			return nil, fmt.Errorf("%w: visualLayout: %v", ErrInvalidDocument, err)
		}
	}
	doc := &Document{
		MapInfo: MapInfo{
			ID:          n.id(flat.MapID),
			Name:        firstString(flat.Name, DefaultMapName),
			Version:     firstString(flat.ModelVersion, DefaultMapVersion),
			Description: flat.Description,
			Width:       defaultWidth,
			Height:      defaultHeight,
			Scale:       1,
			ScaleX:      or(defaultScaleX, layout.ScaleX),
			ScaleY:      or(defaultScaleY, layout.ScaleY),
		},
		Metadata: Metadata{
			CreatedAt: firstString(flat.CreateTime, n.stamp()),
			UpdatedAt: firstString(flat.UpdateTime, n.stamp()),
		},
	}
	if isObject(flat.VisualLayout) {
		doc.VisualLayout = slices.Clone(flat.VisualLayout)
	}
	if err := decodeCollections(doc, layout.LayerGroups, layout.Layers, obj["points"], obj["paths"], obj["locations"]); err != nil {
		return nil, err
	}
	return doc, nil
}

func (n *normalizer) id(got models.FlexID) models.FlexID {
	if got == "" {
		return models.FlexID(n.mapID)
	}
	return got
}

func (n *normalizer) stamp() string {
	return n.now.UTC().Format(time.RFC3339)
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func decodeObject(obj object, out any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

func decodeCollections(doc *Document, groups, layers, points, paths, locations json.RawMessage) error {
	var err error
	if doc.LayerGroups, err = decodeList[LayerGroup]("layerGroups", groups, fixGroup); err != nil {
		return err
	}
	if doc.Layers, err = decodeList[Layer]("layers", layers, fixLayer); err != nil {
		return err
	}
	if doc.Elements.Points, err = decodeList[Point]("points", points, fixPoint); err != nil {
		return err
	}
	if doc.Elements.Paths, err = decodeList[Path]("paths", paths, fixPath); err != nil {
		return err
	}
	if doc.Elements.Locations, err = decodeList[Location]("locations", locations, fixLocation); err != nil {
		return err
	}
	return nil
}

// decodeList decodes a JSON array, passing each item through fix first. A
// missing or null array yields an empty slice.
func decodeList[T any](name string, raw json.RawMessage, fix func(map[string]any)) ([]T, error) {
	if isNull(raw) {
		return []T{}, nil
	}
	var items []map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, name, err)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		fix(item)
		var v T
		if err := fromFields(item, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// stringify rewrites numeric values of keys as strings.
func stringify(m map[string]any, keys ...string) {
	for _, k := range keys {
		if n, ok := m[k].(json.Number); ok {
			m[k] = n.String()
		}
	}
}

func defaultTo(m map[string]any, key string, v any) {
	if val, ok := m[key]; !ok || val == nil {
		m[key] = v
	}
}

func fixGroup(m map[string]any) {
	stringify(m, "id")
	defaultTo(m, "visible", true)
}

func fixLayer(m map[string]any) {
	stringify(m, "id", "layerGroupId", "groupId")
	if _, ok := m["layerGroupId"]; !ok {
		if g, ok := m["groupId"]; ok {
			m["layerGroupId"] = g
		}
	}
	defaultTo(m, "visible", true)
	defaultTo(m, "opacity", 1)
	defaultTo(m, "type", string(LayerPoint))
	if ids, ok := m["elementIds"].([]any); ok {
		for i, id := range ids {
			if n, ok := id.(json.Number); ok {
				ids[i] = n.String()
			}
		}
	}
}

func fixVertices(list any) {
	vs, ok := list.([]any)
	if !ok {
		return
	}
	for _, v := range vs {
		if m, ok := v.(map[string]any); ok {
			stringify(m, "id")
		}
	}
}

func fixPoint(m map[string]any) {
	stringify(m, "id", "layerId")
	defaultTo(m, "editorProps", DefaultPointProps())
}

func fixPath(m map[string]any) {
	stringify(m, "id", "layerId")
	defaultTo(m, "editorProps", DefaultPathProps())
	if g, ok := m["geometry"].(map[string]any); ok {
		fixVertices(g["controlPoints"])
	}
}

func fixLocation(m map[string]any) {
	stringify(m, "id", "layerId")
	defaultTo(m, "editorProps", DefaultLocationProps())
	if g, ok := m["geometry"].(map[string]any); ok {
		fixVertices(g["vertices"])
	}
}

// reconcile enforces the document invariants: unique element ids, geometry
// on every path and location, a layer for every element, and layer member
// lists that agree with the elements' layer ids.
func reconcile(doc *Document) {
	seen := map[string]bool{}
	doc.Elements.Points = dedupe(doc.Elements.Points, seen, "point")
	doc.Elements.Paths = dedupe(doc.Elements.Paths, seen, "path")
	doc.Elements.Locations = dedupe(doc.Elements.Locations, seen, "location")

	coords := make(map[string]Point, len(doc.Elements.Points))
	for _, p := range doc.Elements.Points {
		coords[p.ID] = p
	}
	for i := range doc.Elements.Paths {
		p := &doc.Elements.Paths[i]
		if p.Geometry.PathType == "" {
			p.Geometry.PathType = PathLine
		}
		if len(p.Geometry.ControlPoints) > 0 {
			continue
		}
		start, okStart := coords[p.StartPointID.String()]
		end, okEnd := coords[p.EndPointID.String()]
		if okStart && okEnd {
			p.Geometry.ControlPoints = []Vertex{
				{ID: start.ID, X: start.X, Y: start.Y, Z: cloneFloat(start.Z)},
				{ID: end.ID, X: end.X, Y: end.Y, Z: cloneFloat(end.Z)},
			}
		} else {
			p.Geometry = DefaultPathGeometry(p.StartPointID, p.EndPointID)
		}
	}
	for i := range doc.Elements.Locations {
		l := &doc.Elements.Locations[i]
		if len(l.Geometry.Vertices) > 0 {
			continue
		}
		center := geom.Point{Z: cloneFloat(l.Z)}
		if l.X != nil {
			center.X = *l.X
		}
		if l.Y != nil {
			center.Y = *l.Y
		}
		l.Geometry = DefaultLocationGeometry(l.ID, center)
	}

	if len(doc.Layers) == 0 {
		ensureDefaultLayer(doc)
	}
	layerAt := make(map[string]int, len(doc.Layers))
	for i := range doc.Layers {
		if doc.Layers[i].ID == "" {
			doc.Layers[i].ID = "layer_" + uuid.NewString()
		}
		layerAt[doc.Layers[i].ID] = i
	}
	fallback := doc.Layers[0].ID
	for _, l := range doc.Layers {
		if l.Name == DefaultLayerName {
			fallback = l.ID
			break
		}
	}

	// owner maps every element to the layer it will live in. An element whose
	// layer id is unknown adopts the first layer listing it, else the fallback.
	listedIn := map[string]string{}
	for _, l := range doc.Layers {
		for _, id := range l.ElementIDs {
			if _, ok := listedIn[id]; !ok {
				listedIn[id] = l.ID
			}
		}
	}
	resolve := func(id, layerID string) string {
		if _, ok := layerAt[layerID]; ok {
			return layerID
		}
		if listed, ok := listedIn[id]; ok {
			return listed
		}
		return fallback
	}
	owner := map[string]string{}
	var order []string
	for i := range doc.Elements.Points {
		p := &doc.Elements.Points[i]
		p.LayerID = resolve(p.ID, p.LayerID)
		owner[p.ID] = p.LayerID
		order = append(order, p.ID)
	}
	for i := range doc.Elements.Paths {
		p := &doc.Elements.Paths[i]
		p.LayerID = resolve(p.ID, p.LayerID)
		owner[p.ID] = p.LayerID
		order = append(order, p.ID)
	}
	for i := range doc.Elements.Locations {
		l := &doc.Elements.Locations[i]
		l.LayerID = resolve(l.ID, l.LayerID)
		owner[l.ID] = l.LayerID
		order = append(order, l.ID)
	}

	// Keep each layer's listed order for its own elements, then append the
	// elements it owns but did not list.
	placed := map[string]bool{}
	for i := range doc.Layers {
		l := &doc.Layers[i]
		members := make([]string, 0, len(l.ElementIDs))
		for _, id := range l.ElementIDs {
			if owner[id] == l.ID && !placed[id] {
				members = append(members, id)
				placed[id] = true
			}
		}
		l.ElementIDs = members
	}
	for _, id := range order {
		if placed[id] {
			continue
		}
		l := &doc.Layers[layerAt[owner[id]]]
		l.ElementIDs = append(l.ElementIDs, id)
		placed[id] = true
	}
}

// dedupe drops elements whose id was already seen and gives id-less elements
// a fresh id.
func dedupe[T entity[T]](items []T, seen map[string]bool, prefix string) []T {
	out := items[:0]
	for _, it := range items {
		id := it.elementID()
		if id == "" {
			it = withID(it, prefix+"_"+uuid.NewString())
			id = it.elementID()
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, it)
	}
	return out
}

func withID[T any](it T, id string) T {
	switch v := any(&it).(type) {
	case *Point:
		v.ID = id
	case *Path:
		v.ID = id
	case *Location:
		v.ID = id
	}
	return it
}

func ensureDefaultLayer(doc *Document) {
	groupID := ""
	for _, g := range doc.LayerGroups {
		if g.Name == DefaultLayerGroupName {
			groupID = g.ID
			break
		}
	}
	if groupID == "" {
		groupID = "group_" + uuid.NewString()
		doc.LayerGroups = append(doc.LayerGroups, LayerGroup{ID: groupID, Name: DefaultLayerGroupName, Visible: true})
	}
	doc.Layers = append(doc.Layers, Layer{
		ID:           "layer_" + uuid.NewString(),
		Name:         DefaultLayerName,
		Type:         LayerPoint,
		Visible:      true,
		Opacity:      1,
		LayerGroupID: groupID,
		ElementIDs:   []string{},
	})
}
