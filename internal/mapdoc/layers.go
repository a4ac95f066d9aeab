package mapdoc

import (
	"fmt"
	"slices"
)

func (e *Editor) Layers() []Layer { return cloneEach(e.layers, Layer.clone) }

func (e *Editor) LayerGroups() []LayerGroup { return cloneSlice(e.groups) }

// Layer returns a copy of the layer with the given id.
func (e *Editor) Layer(id string) (Layer, bool) {
	if i := e.layerIndex(id); i >= 0 {
		return e.layers[i].clone(), true
	}
	return Layer{}, false
}

func (e *Editor) layerIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(e.layers, func(l Layer) bool { return l.ID == id })
}

func (e *Editor) groupIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(e.groups, func(g LayerGroup) bool { return g.ID == id })
}

// addMember inserts elemID into the layer's member list at position at. An
// out-of-range position appends.
func (e *Editor) addMember(layerID, elemID string, at int) {
	i := e.layerIndex(layerID)
	if i < 0 {
		return
	}
	ids := e.layers[i].ElementIDs
	if at < 0 || at > len(ids) {
		at = len(ids)
	}
	e.layers[i].ElementIDs = slices.Insert(ids, at, elemID)
}

// removeMember drops elemID from every layer and returns its position in the
// first layer that listed it, or -1.
func (e *Editor) removeMember(elemID string) int {
	pos := -1
	for i := range e.layers {
		j := slices.Index(e.layers[i].ElementIDs, elemID)
		if j < 0 {
			continue
		}
		if pos < 0 {
			pos = j
		}
		e.layers[i].ElementIDs = slices.DeleteFunc(e.layers[i].ElementIDs, func(id string) bool { return id == elemID })
	}
	return pos
}

// relayer moves elemID's membership to layer to, inserting it at member
// position at. A negative position appends.
func (e *Editor) relayer(elemID, to string, at int) error {
	if e.layerIndex(to) < 0 {
		return fmt.Errorf("mapdoc: move %q to layer %q: %w", elemID, to, ErrLayerNotFound)
	}
	e.removeMember(elemID)
	e.addMember(to, elemID, at)
	return nil
}

// fallbackLayerID picks the active layer to use when the current one is
// missing: the current one if it still exists, else the default layer, else
// the first layer.
func (e *Editor) fallbackLayerID() string {
	if e.layerIndex(e.activeLayerID) >= 0 {
		return e.activeLayerID
	}
	if i := slices.IndexFunc(e.layers, func(l Layer) bool { return l.Name == DefaultLayerName }); i >= 0 {
		return e.layers[i].ID
	}
	if len(e.layers) > 0 {
		return e.layers[0].ID
	}
	return ""
}

// SetActiveLayer selects the layer new elements go to and marks the document
// dirty when the active layer changes. Unknown ids are ignored.
func (e *Editor) SetActiveLayer(id string) {
	if e.layerIndex(id) >= 0 && id != e.activeLayerID {
		e.activeLayerID = id
		e.touch()
	}
}

// AddLayer stores l and returns it. A missing group id resolves to the
// default group, else the first group.
func (e *Editor) AddLayer(l Layer) (Layer, error) {
	l = l.clone()
	if l.ID == "" {
		l.ID = e.newID("layer")
	} else if e.layerIndex(l.ID) >= 0 {
		return Layer{}, fmt.Errorf("mapdoc: add layer %q: %w", l.ID, ErrDuplicateID)
	}
	if l.Type == "" {
		l.Type = LayerPoint
	}
	if l.LayerGroupID == "" {
		l.LayerGroupID = e.defaultGroupID()
	}
	l.ElementIDs = []string{}
	e.layers = append(e.layers, l)
	if e.activeLayerID == "" {
		e.activeLayerID = l.ID
	}
	e.touch()
	return l.clone(), nil
}

func (e *Editor) defaultGroupID() string {
	if i := slices.IndexFunc(e.groups, func(g LayerGroup) bool { return g.Name == DefaultLayerGroupName }); i >= 0 {
		return e.groups[i].ID
	}
	if len(e.groups) > 0 {
		return e.groups[0].ID
	}
	return ""
}

// UpdateLayer merges patch into the layer. The id and member list are kept.
// Unknown ids are ignored.
func (e *Editor) UpdateLayer(id string, patch Patch) error {
	i := e.layerIndex(id)
	if i < 0 {
		return nil
	}
	cur := e.layers[i]
	next, err := mergePatch(cur, patch)
	if err != nil {
		return err
	}
	next.ID = id
	next.ElementIDs = cur.ElementIDs
	e.layers[i] = next
	e.touch()
	return nil
}

// DeleteLayer removes the layer and every element it holds, whether listed
// as a member or carrying the layer id.
func (e *Editor) DeleteLayer(id string) {
	i := e.layerIndex(id)
	if i < 0 {
		return
	}
	doomed := slices.Clone(e.layers[i].ElementIDs)
	doomed = append(doomed, e.points.idsInLayer(id)...)
	doomed = append(doomed, e.paths.idsInLayer(id)...)
	doomed = append(doomed, e.locations.idsInLayer(id)...)
	for _, elemID := range doomed {
		e.deleteElement(elemID)
	}
	e.layers = slices.Delete(e.layers, i, i+1)
	if e.activeLayerID == id {
		e.activeLayerID = ""
		e.activeLayerID = e.fallbackLayerID()
	}
	e.touch()
}

// AddLayerGroup stores g and returns it.
func (e *Editor) AddLayerGroup(g LayerGroup) (LayerGroup, error) {
	if g.ID == "" {
		g.ID = e.newID("group")
	} else if e.groupIndex(g.ID) >= 0 {
		return LayerGroup{}, fmt.Errorf("mapdoc: add layer group %q: %w", g.ID, ErrDuplicateID)
	}
	e.groups = append(e.groups, g)
	e.touch()
	return g, nil
}

// UpdateLayerGroup merges patch into the group. Unknown ids are ignored.
func (e *Editor) UpdateLayerGroup(id string, patch Patch) error {
	i := e.groupIndex(id)
	if i < 0 {
		return nil
	}
	next, err := mergePatch(e.groups[i], patch)
	if err != nil {
		return err
	}
	next.ID = id
	e.groups[i] = next
	e.touch()
	return nil
}

// DeleteLayerGroup removes the group. It fails with ErrLayerGroupInUse while
// any layer still references it.
func (e *Editor) DeleteLayerGroup(id string) error {
	i := e.groupIndex(id)
	if i < 0 {
		return nil
	}
	if slices.ContainsFunc(e.layers, func(l Layer) bool { return l.LayerGroupID == id }) {
		return fmt.Errorf("mapdoc: delete layer group %q: %w", id, ErrLayerGroupInUse)
	}
	e.groups = slices.Delete(e.groups, i, i+1)
	e.touch()
	return nil
}
