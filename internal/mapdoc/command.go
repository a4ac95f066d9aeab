package mapdoc

import (
	"encoding/json"
	"fmt"

	"github.com/starford/mapforge/internal/geom"
)

// CommandKind tags the variant held by a Command.
type CommandKind string

const (
	CommandAdd            CommandKind = "add"
	CommandDelete         CommandKind = "delete"
	CommandMove           CommandKind = "move"
	CommandUpdateProperty CommandKind = "update-property"
)

// Command is a reversible document edit. It is plain data; the editor
// interprets it when executed, undone or redone.
//
// Payload holds the element for add and delete, and the pre-move element for
// path and location moves. Index and MemberIndex record where a deleted
// element sat so that undo restores it in place; for an update of layerId,
// MemberIndex is the position in the original layer. OldValue is nil when the
// property did not exist before the update.
type Command struct {
	Kind        CommandKind     `json:"kind"`
	Element     ElementKind     `json:"element"`
	ElementID   string          `json:"elementId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Index       int             `json:"index"`
	MemberIndex int             `json:"memberIndex"`
	From        *geom.Point     `json:"from,omitempty"`
	To          *geom.Point     `json:"to,omitempty"`
	Property    string          `json:"property,omitempty"`
	OldValue    json.RawMessage `json:"oldValue,omitempty"`
	NewValue    json.RawMessage `json:"newValue,omitempty"`
	Label       string          `json:"description,omitempty"`
}

// Description is a human-readable summary such as "move point".
func (c *Command) Description() string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Element)
}

// NewAddCommand returns a command adding element, which must be a Point, Path
// or Location matching kind.
func NewAddCommand(kind ElementKind, element any) (*Command, error) {
	if err := checkKind(kind, element); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(element)
	if err != nil {
		return nil, fmt.Errorf("mapdoc: encode %s: %w", kind, err)
	}
	return &Command{Kind: CommandAdd, Element: kind, Payload: payload, Index: -1, MemberIndex: -1}, nil
}

// NewMoveCommand returns a command moving an element from one position to
// another. Points take the target position; paths and locations are
// translated by to minus from.
func NewMoveCommand(kind ElementKind, id string, from, to geom.Point) (*Command, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("mapdoc: element kind %q: %w", kind, ErrInvalidCommand)
	}
	return &Command{
		Kind:      CommandMove,
		Element:   kind,
		ElementID: id,
		From:      &from,
		To:        &to,
	}, nil
}

// DeleteCommand captures the element and its positions for a delete.
func (e *Editor) DeleteCommand(kind ElementKind, id string) (*Command, error) {
	el, ok := e.element(kind, id)
	if !ok {
		return nil, fmt.Errorf("mapdoc: delete %s %q: %w", kind, id, ErrElementNotFound)
	}
	payload, err := json.Marshal(el)
	if err != nil {
		return nil, fmt.Errorf("mapdoc: encode %s: %w", kind, err)
	}
	return &Command{
		Kind:        CommandDelete,
		Element:     kind,
		ElementID:   id,
		Payload:     payload,
		Index:       e.collectionIndex(kind, id),
		MemberIndex: e.memberIndex(id),
	}, nil
}

// MoveCommand returns a move of the element to to, starting from its current
// position: a point's coordinates, a path's first control point, or a
// location's center.
func (e *Editor) MoveCommand(kind ElementKind, id string, to geom.Point) (*Command, error) {
	from, ok := e.position(kind, id)
	if !ok {
		return nil, fmt.Errorf("mapdoc: move %s %q: %w", kind, id, ErrElementNotFound)
	}
	return NewMoveCommand(kind, id, from, to)
}

// layerProperty is the element property holding its layer id.
const layerProperty = "layerId"

// UpdatePropertyCommand returns a command setting the dotted property path to
// value, capturing the current value for undo. For layerId it also captures
// the element's member position so that undo puts it back in place.
func (e *Editor) UpdatePropertyCommand(kind ElementKind, id, property string, value any) (*Command, error) {
	if property == "" || property == "id" {
		return nil, fmt.Errorf("mapdoc: update %s %q: %w", kind, property, ErrProtectedProperty)
	}
	el, ok := e.element(kind, id)
	if !ok {
		return nil, fmt.Errorf("mapdoc: update %s %q: %w", kind, id, ErrElementNotFound)
	}
	old, present, err := getProperty(el, property)
	if err != nil {
		return nil, fmt.Errorf("mapdoc: read %s: %w", property, err)
	}
	if !present {
		old = nil
	}
	next, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("mapdoc: encode %s: %w", property, err)
	}
	memberAt := -1
	if property == layerProperty {
		memberAt = e.memberIndex(id)
	}
	return &Command{
		Kind:        CommandUpdateProperty,
		Element:     kind,
		ElementID:   id,
		Index:       -1,
		MemberIndex: memberAt,
		Property:    property,
		OldValue:    old,
		NewValue:    next,
	}, nil
}

func checkKind(kind ElementKind, element any) error {
	var ok bool
	switch element.(type) {
	case Point, *Point:
		ok = kind == KindPoint
	case Path, *Path:
		ok = kind == KindPath
	case Location, *Location:
		ok = kind == KindLocation
	}
	if !ok {
		return fmt.Errorf("mapdoc: %T is not a %s: %w", element, kind, ErrInvalidCommand)
	}
	return nil
}

func (e *Editor) collectionIndex(kind ElementKind, id string) int {
	switch kind {
	case KindPoint:
		return e.points.index(id)
	case KindPath:
		return e.paths.index(id)
	case KindLocation:
		return e.locations.index(id)
	}
	return -1
}

func (e *Editor) memberIndex(id string) int {
	for _, l := range e.layers {
		for j, m := range l.ElementIDs {
			if m == id {
				return j
			}
		}
	}
	return -1
}

func (e *Editor) position(kind ElementKind, id string) (geom.Point, bool) {
	switch kind {
	case KindPoint:
		if p, ok := e.points.get(id); ok {
			return p.Coord(), true
		}
	case KindPath:
		if p, ok := e.paths.get(id); ok {
			if len(p.Geometry.ControlPoints) == 0 {
				return geom.Point{}, true
			}
			return p.Geometry.ControlPoints[0].Coord(), true
		}
	case KindLocation:
		if l, ok := e.locations.get(id); ok {
			return l.Center(), true
		}
	}
	return geom.Point{}, false
}

// interpreter applies commands to the editor it is bound to.
type interpreter struct {
	e *Editor
}

func (in interpreter) Apply(cmd *Command) error {
	switch cmd.Kind {
	case CommandAdd:
		return in.e.applyAdd(cmd)
	case CommandDelete:
		return in.e.deleteKind(cmd.Element, cmd.ElementID)
	case CommandMove:
		return in.e.applyMove(cmd)
	case CommandUpdateProperty:
		return in.e.setElementProperty(cmd.Element, cmd.ElementID, cmd.Property, cmd.NewValue, true, -1)
	}
	return fmt.Errorf("command kind %q: %w", cmd.Kind, ErrInvalidCommand)
}

func (in interpreter) Revert(cmd *Command) error {
	switch cmd.Kind {
	case CommandAdd:
		return in.e.deleteKind(cmd.Element, cmd.ElementID)
	case CommandDelete:
		_, err := in.e.restore(cmd.Element, cmd.Payload, cmd.Index, cmd.MemberIndex)
		return err
	case CommandMove:
		return in.e.revertMove(cmd)
	case CommandUpdateProperty:
		return in.e.setElementProperty(cmd.Element, cmd.ElementID, cmd.Property, cmd.OldValue, cmd.OldValue != nil, cmd.MemberIndex)
	}
	return fmt.Errorf("command kind %q: %w", cmd.Kind, ErrInvalidCommand)
}

// applyAdd inserts the payload and records the stored element, so that a redo
// re-adds the identical record.
func (e *Editor) applyAdd(cmd *Command) error {
	id, err := e.restore(cmd.Element, cmd.Payload, cmd.Index, cmd.MemberIndex)
	if err != nil {
		return err
	}
	el, _ := e.element(cmd.Element, id)
	payload, err := json.Marshal(el)
	if err != nil {
		return err
	}
	cmd.ElementID = id
	cmd.Payload = payload
	return nil
}

// restore decodes payload as an element of kind and inserts it at the given
// positions. It returns the stored id.
func (e *Editor) restore(kind ElementKind, payload json.RawMessage, at, memberAt int) (string, error) {
	switch kind {
	case KindPoint:
		var p Point
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		stored, err := e.insertPoint(p, at, memberAt)
		return stored.ID, err
	case KindPath:
		var p Path
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		stored, err := e.insertPath(p, at, memberAt)
		return stored.ID, err
	case KindLocation:
		var l Location
		if err := json.Unmarshal(payload, &l); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		stored, err := e.insertLocation(l, at, memberAt)
		return stored.ID, err
	}
	return "", fmt.Errorf("element kind %q: %w", kind, ErrInvalidCommand)
}

func (e *Editor) applyMove(cmd *Command) error {
	if cmd.From == nil || cmd.To == nil {
		return fmt.Errorf("move without positions: %w", ErrInvalidCommand)
	}
	from, to := *cmd.From, *cmd.To
	dx, dy := to.X-from.X, to.Y-from.Y
	var (
		found bool
		err   error
	)
	switch cmd.Element {
	case KindPoint:
		found, err = updateIn(e, &e.points, cmd.ElementID, func(p Point) (Point, error) {
			p.X, p.Y, p.Z = to.X, to.Y, cloneFloat(to.Z)
			return p, nil
		})
	case KindPath:
		if before, ok := e.paths.get(cmd.ElementID); ok {
			if cmd.Payload, err = json.Marshal(before); err != nil {
				return err
			}
		}
		found, err = updateIn(e, &e.paths, cmd.ElementID, func(p Path) (Path, error) {
			for i := range p.Geometry.ControlPoints {
				p.Geometry.ControlPoints[i].X += dx
				p.Geometry.ControlPoints[i].Y += dy
			}
			return p, nil
		})
	case KindLocation:
		if before, ok := e.locations.get(cmd.ElementID); ok {
			if cmd.Payload, err = json.Marshal(before); err != nil {
				return err
			}
		}
		found, err = updateIn(e, &e.locations, cmd.ElementID, func(l Location) (Location, error) {
			for i := range l.Geometry.Vertices {
				l.Geometry.Vertices[i].X += dx
				l.Geometry.Vertices[i].Y += dy
			}
			if l.X != nil && l.Y != nil {
				*l.X += dx
				*l.Y += dy
			}
			return l, nil
		})
	default:
		return fmt.Errorf("element kind %q: %w", cmd.Element, ErrInvalidCommand)
	}
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("move %s %q: %w", cmd.Element, cmd.ElementID, ErrElementNotFound)
	}
	return nil
}

// revertMove puts a point back at From, and restores the geometry a path or
// location had before the move.
func (e *Editor) revertMove(cmd *Command) error {
	var (
		found bool
		err   error
	)
	switch cmd.Element {
	case KindPoint:
		if cmd.From == nil {
			return fmt.Errorf("move without positions: %w", ErrInvalidCommand)
		}
		from := *cmd.From
		found, err = updateIn(e, &e.points, cmd.ElementID, func(p Point) (Point, error) {
			p.X, p.Y, p.Z = from.X, from.Y, cloneFloat(from.Z)
			return p, nil
		})
	case KindPath:
		var before Path
		if err := json.Unmarshal(cmd.Payload, &before); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		found, err = updateIn(e, &e.paths, cmd.ElementID, func(p Path) (Path, error) {
			p.Geometry = before.Geometry
			return p, nil
		})
	case KindLocation:
		var before Location
		if err := json.Unmarshal(cmd.Payload, &before); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		found, err = updateIn(e, &e.locations, cmd.ElementID, func(l Location) (Location, error) {
			l.Geometry = before.Geometry
			l.X, l.Y, l.Z = before.X, before.Y, before.Z
			return l, nil
		})
	default:
		return fmt.Errorf("element kind %q: %w", cmd.Element, ErrInvalidCommand)
	}
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("move %s %q: %w", cmd.Element, cmd.ElementID, ErrElementNotFound)
	}
	return nil
}

// setElementProperty writes or removes a dotted property on an element. When
// the write changes the layer, the element lands at member position memberAt,
// or at the end when memberAt is negative.
func (e *Editor) setElementProperty(kind ElementKind, id, property string, value json.RawMessage, present bool, memberAt int) error {
	if property == "" || property == "id" {
		return fmt.Errorf("update %q: %w", property, ErrProtectedProperty)
	}
	var (
		found bool
		err   error
	)
	switch kind {
	case KindPoint:
		found, err = updateInAt(e, &e.points, id, memberAt, func(p Point) (Point, error) {
			return setProperty(p, property, value, present)
		})
		if found {
			p, _ := e.points.get(id)
			e.observePointName(p.Name)
		}
	case KindPath:
		found, err = updateInAt(e, &e.paths, id, memberAt, func(p Path) (Path, error) {
			return setProperty(p, property, value, present)
		})
	case KindLocation:
		found, err = updateInAt(e, &e.locations, id, memberAt, func(l Location) (Location, error) {
			return setProperty(l, property, value, present)
		})
	default:
		return fmt.Errorf("element kind %q: %w", kind, ErrInvalidCommand)
	}
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("update %s %q: %w", kind, id, ErrElementNotFound)
	}
	return nil
}
