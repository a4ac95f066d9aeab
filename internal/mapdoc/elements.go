package mapdoc

import (
	"fmt"
	"regexp"
	"strconv"
)

var pointNamePattern = regexp.MustCompile(`(?i)^Point-(\d+)$`)

// GeneratePointName advances the name counter and returns the next
// Point-#### name.
func (e *Editor) GeneratePointName() string {
	e.pointCounter++
	return fmt.Sprintf("Point-%04d", e.pointCounter)
}

// observePointName keeps the counter ahead of any generated-looking name.
func (e *Editor) observePointName(name string) {
	m := pointNamePattern.FindStringSubmatch(name)
	if m == nil {
		return
	}
	if n, err := strconv.Atoi(m[1]); err == nil && n > e.pointCounter {
		e.pointCounter = n
	}
}

func (e *Editor) syncPointCounter() {
	e.pointCounter = 0
	for _, p := range e.points.items {
		e.observePointName(p.Name)
	}
}

// Point returns a copy of the point with the given id.
func (e *Editor) Point(id string) (Point, bool)       { return e.points.get(id) }
func (e *Editor) Path(id string) (Path, bool)         { return e.paths.get(id) }
func (e *Editor) Location(id string) (Location, bool) { return e.locations.get(id) }

func (e *Editor) Points() []Point       { return e.points.snapshot() }
func (e *Editor) Paths() []Path         { return e.paths.snapshot() }
func (e *Editor) Locations() []Location { return e.locations.snapshot() }

// kindOf reports which collection holds id.
func (e *Editor) kindOf(id string) (ElementKind, bool) {
	switch {
	case e.points.index(id) >= 0:
		return KindPoint, true
	case e.paths.index(id) >= 0:
		return KindPath, true
	case e.locations.index(id) >= 0:
		return KindLocation, true
	}
	return "", false
}

// prepareElement resolves the id and layer of a new element. The layer must
// exist: every element belongs to exactly one layer, so adding to a layer id
// that was never created fails with ErrLayerNotFound.
func (e *Editor) prepareElement(kind ElementKind, id, layerID string) (string, string, error) {
	if id == "" {
		id = e.newID(string(kind))
	} else if _, taken := e.kindOf(id); taken {
		return "", "", fmt.Errorf("mapdoc: add %s %q: %w", kind, id, ErrDuplicateID)
	}
	if layerID == "" {
		layerID = e.activeLayerID
	}
	if e.layerIndex(layerID) < 0 {
		return "", "", fmt.Errorf("mapdoc: add %s to layer %q: %w", kind, layerID, ErrLayerNotFound)
	}
	return id, layerID, nil
}

// AddPoint stores p and returns the stored record.
func (e *Editor) AddPoint(p Point) (Point, error) {
	return e.insertPoint(p, -1, -1)
}

func (e *Editor) insertPoint(p Point, at, memberAt int) (Point, error) {
	id, layerID, err := e.prepareElement(KindPoint, p.ID, p.LayerID)
	if err != nil {
		return Point{}, err
	}
	p = p.clone()
	p.ID, p.LayerID = id, layerID
	if p.Name == "" {
		p.Name = e.GeneratePointName()
	}
	e.points.insert(p, at)
	e.addMember(layerID, id, memberAt)
	e.observePointName(p.Name)
	e.touch()
	return p.clone(), nil
}

// AddPath stores p and returns the stored record.
func (e *Editor) AddPath(p Path) (Path, error) {
	return e.insertPath(p, -1, -1)
}

func (e *Editor) insertPath(p Path, at, memberAt int) (Path, error) {
	id, layerID, err := e.prepareElement(KindPath, p.ID, p.LayerID)
	if err != nil {
		return Path{}, err
	}
	p = p.clone()
	p.ID, p.LayerID = id, layerID
	if p.Geometry.PathType == "" {
		p.Geometry.PathType = PathLine
	}
	if p.Geometry.ControlPoints == nil {
		p.Geometry.ControlPoints = []Vertex{}
	}
	e.paths.insert(p, at)
	e.addMember(layerID, id, memberAt)
	e.touch()
	return p.clone(), nil
}

// AddLocation stores l and returns the stored record.
func (e *Editor) AddLocation(l Location) (Location, error) {
	return e.insertLocation(l, -1, -1)
}

func (e *Editor) insertLocation(l Location, at, memberAt int) (Location, error) {
	id, layerID, err := e.prepareElement(KindLocation, l.ID, l.LayerID)
	if err != nil {
		return Location{}, err
	}
	l = l.clone()
	l.ID, l.LayerID = id, layerID
	if l.Geometry.Vertices == nil {
		l.Geometry.Vertices = []Vertex{}
	}
	e.locations.insert(l, at)
	e.addMember(layerID, id, memberAt)
	e.touch()
	return l.clone(), nil
}

// updateIn replaces the element id with mutate(element). A changed layer id
// appends the element to the new layer. It reports false when id is absent.
func updateIn[T entity[T]](e *Editor, c *collection[T], id string, mutate func(T) (T, error)) (bool, error) {
	return updateInAt(e, c, id, -1, mutate)
}

// updateInAt is updateIn placing a relayered element at member position
// memberAt.
func updateInAt[T entity[T]](e *Editor, c *collection[T], id string, memberAt int, mutate func(T) (T, error)) (bool, error) {
	i := c.index(id)
	if i < 0 {
		return false, nil
	}
	cur := c.items[i]
	next, err := mutate(cur.clone())
	if err != nil {
		return false, err
	}
	if next.elementID() != id {
		return false, fmt.Errorf("mapdoc: update %q: %w", id, ErrProtectedProperty)
	}
	if to := next.layerOf(); to != cur.layerOf() {
		if err := e.relayer(id, to, memberAt); err != nil {
			return false, err
		}
	}
	c.items[i] = next
	e.touch()
	return true, nil
}

// UpdatePoint merges patch into the point. The id never changes and an empty
// layer id keeps the current layer. Unknown ids are ignored.
func (e *Editor) UpdatePoint(id string, patch Patch) error {
	ok, err := updateIn(e, &e.points, id, func(p Point) (Point, error) {
		next, err := mergePatch(p, patch)
		next.ID = id
		if next.LayerID == "" {
			next.LayerID = p.LayerID
		}
		return next, err
	})
	if ok {
		e.observePointName(e.points.items[e.points.index(id)].Name)
	}
	return err
}

func (e *Editor) UpdatePath(id string, patch Patch) error {
	_, err := updateIn(e, &e.paths, id, func(p Path) (Path, error) {
		next, err := mergePatch(p, patch)
		next.ID = id
		if next.LayerID == "" {
			next.LayerID = p.LayerID
		}
		return next, err
	})
	return err
}

func (e *Editor) UpdateLocation(id string, patch Patch) error {
	_, err := updateIn(e, &e.locations, id, func(l Location) (Location, error) {
		next, err := mergePatch(l, patch)
		next.ID = id
		if next.LayerID == "" {
			next.LayerID = l.LayerID
		}
		return next, err
	})
	return err
}

// deleteFrom removes id from c, from every layer and from the selection. It
// returns the removed element with its collection and member positions.
func deleteFrom[T entity[T]](e *Editor, c *collection[T], id string) (removed T, at, memberAt int, ok bool) {
	at = c.index(id)
	if at < 0 {
		return removed, -1, -1, false
	}
	removed = c.removeAt(at)
	memberAt = e.removeMember(id)
	e.selection.remove(id)
	e.touch()
	return removed, at, memberAt, true
}

// DeletePoint removes the point. Unknown ids are ignored.
func (e *Editor) DeletePoint(id string) {
	deleteFrom(e, &e.points, id)
}

func (e *Editor) DeletePath(id string) {
	deleteFrom(e, &e.paths, id)
}

func (e *Editor) DeleteLocation(id string) {
	deleteFrom(e, &e.locations, id)
}

// deleteElement removes id from whichever collection holds it.
func (e *Editor) deleteElement(id string) {
	switch kind, _ := e.kindOf(id); kind {
	case KindPoint:
		e.DeletePoint(id)
	case KindPath:
		e.DeletePath(id)
	case KindLocation:
		e.DeleteLocation(id)
	}
}

// deleteKind removes id only if it is held by the collection of kind.
func (e *Editor) deleteKind(kind ElementKind, id string) error {
	switch kind {
	case KindPoint:
		e.DeletePoint(id)
	case KindPath:
		e.DeletePath(id)
	case KindLocation:
		e.DeleteLocation(id)
	default:
		return fmt.Errorf("mapdoc: element kind %q: %w", kind, ErrInvalidCommand)
	}
	return nil
}

// element returns a copy of the element of kind with id.
func (e *Editor) element(kind ElementKind, id string) (any, bool) {
	switch kind {
	case KindPoint:
		return e.points.get(id)
	case KindPath:
		return e.paths.get(id)
	case KindLocation:
		return e.locations.get(id)
	}
	return nil, false
}
