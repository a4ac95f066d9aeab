package mapdoc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/history"
)

func TestAddCommandRedoRestoresSameRecord(t *testing.T) {
	e := newTestEditor(t, nil)
	cmd, err := NewAddCommand(KindPoint, Point{X: 3, Y: 4})
	require.NoError(t, err)

	require.NoError(t, e.Execute(cmd))
	added, ok := e.Point(cmd.ElementID)
	require.True(t, ok)
	assert.Equal(t, "Point-0001", added.Name)

	require.True(t, e.Undo())
	assert.Empty(t, e.Points())
	assert.True(t, e.CanRedo())

	require.True(t, e.Redo())
	again, ok := e.Point(cmd.ElementID)
	require.True(t, ok)
	assert.Equal(t, added, again)
	assert.Equal(t, "Point-0002", e.GeneratePointName())
}

func TestAddCommandRejectsMismatchedKind(t *testing.T) {
	_, err := NewAddCommand(KindPath, Point{})
	require.ErrorIs(t, err, ErrInvalidCommand)
}

func TestDeleteCommandUndoRestoresPositions(t *testing.T) {
	e := newTestEditor(t, nil)
	for _, name := range []string{"A", "B", "C"} {
		_, err := e.AddPoint(Point{Name: name, X: 1, Z: geom.Float(2)})
		require.NoError(t, err)
	}
	before := e.Document()

	cmd, err := e.DeleteCommand(KindPoint, "point_2")
	require.NoError(t, err)
	assert.Equal(t, 1, cmd.Index)
	assert.Equal(t, 1, cmd.MemberIndex)

	require.NoError(t, e.Execute(cmd))
	assert.Len(t, e.Points(), 2)

	require.True(t, e.Undo())
	assert.Equal(t, before, e.Document())

	require.True(t, e.Redo())
	_, ok := e.Point("point_2")
	assert.False(t, ok)
}

func TestDeleteCommandUnknownElement(t *testing.T) {
	e := newTestEditor(t, nil)
	_, err := e.DeleteCommand(KindLocation, "missing")
	require.ErrorIs(t, err, ErrElementNotFound)
}

func TestMovePointUndoRestoresHeight(t *testing.T) {
	e := newTestEditor(t, nil)
	p, err := e.AddPoint(Point{X: 1, Y: 1, Z: geom.Float(2)})
	require.NoError(t, err)
	before := e.Document()

	cmd, err := e.MoveCommand(KindPoint, p.ID, geom.Pt(30, 40))
	require.NoError(t, err)
	require.NoError(t, e.Execute(cmd))

	moved, _ := e.Point(p.ID)
	assert.Equal(t, 30.0, moved.X)
	assert.Equal(t, 40.0, moved.Y)
	assert.Nil(t, moved.Z)

	require.True(t, e.Undo())
	assert.Equal(t, before, e.Document())
}

func TestMovePathTranslatesGeometry(t *testing.T) {
	e := newTestEditor(t, nil)
	p, err := e.AddPath(Path{Geometry: PathGeometry{ControlPoints: []Vertex{
		{ID: "a", X: 0, Y: 0},
		{ID: "b", X: 10, Y: 0},
	}}})
	require.NoError(t, err)
	before := e.Document()

	cmd, err := e.MoveCommand(KindPath, p.ID, geom.Pt(5, 5))
	require.NoError(t, err)
	require.NoError(t, e.Execute(cmd))

	moved, _ := e.Path(p.ID)
	assert.Equal(t, []Vertex{{ID: "a", X: 5, Y: 5}, {ID: "b", X: 15, Y: 5}}, moved.Geometry.ControlPoints)

	require.True(t, e.Undo())
	assert.Equal(t, before, e.Document())
	require.True(t, e.Redo())
	moved, _ = e.Path(p.ID)
	assert.Equal(t, 15.0, moved.Geometry.ControlPoints[1].X)
}

func TestMoveLocationTranslatesCenter(t *testing.T) {
	e := newTestEditor(t, nil)
	l, err := e.AddLocation(Location{
		X: geom.Float(1), Y: geom.Float(1),
		Geometry: LocationGeometry{Closed: true, Vertices: []Vertex{
			{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2},
		}},
	})
	require.NoError(t, err)
	before := e.Document()

	cmd, err := NewMoveCommand(KindLocation, l.ID, geom.Pt(1, 1), geom.Pt(11, 21))
	require.NoError(t, err)
	require.NoError(t, e.Execute(cmd))

	moved, _ := e.Location(l.ID)
	assert.Equal(t, geom.Pt(11, 21), moved.Center())
	assert.Equal(t, 10.0, moved.Geometry.Vertices[0].X)
	assert.Equal(t, 20.0, moved.Geometry.Vertices[0].Y)

	require.True(t, e.Undo())
	assert.Equal(t, before, e.Document())
}

func TestMoveMissingElementIsNotRecorded(t *testing.T) {
	e := newTestEditor(t, nil)
	cmd, err := NewMoveCommand(KindPoint, "ghost", geom.Pt(0, 0), geom.Pt(1, 1))
	require.NoError(t, err)

	require.ErrorIs(t, e.Execute(cmd), ErrElementNotFound)
	assert.False(t, e.CanUndo())
}

func TestUpdatePropertyUndoRestoresAbsentValue(t *testing.T) {
	e := newTestEditor(t, nil)
	p, err := e.AddPoint(Point{Name: "A", EditorProps: DefaultPointProps()})
	require.NoError(t, err)
	before := e.Document()

	icon, err := e.UpdatePropertyCommand(KindPoint, p.ID, "editorProps.icon", "charger")
	require.NoError(t, err)
	assert.Nil(t, icon.OldValue)
	require.NoError(t, e.Execute(icon))

	height, err := e.UpdatePropertyCommand(KindPoint, p.ID, "z", 7.5)
	require.NoError(t, err)
	require.NoError(t, e.Execute(height))

	got, _ := e.Point(p.ID)
	assert.Equal(t, "charger", got.EditorProps.Icon)
	require.NotNil(t, got.Z)
	assert.Equal(t, 7.5, *got.Z)
	assert.Equal(t, 5.0, got.EditorProps.Radius)

	require.True(t, e.Undo())
	require.True(t, e.Undo())
	assert.Equal(t, before, e.Document())
}

func TestUpdatePropertyKeepsOldValue(t *testing.T) {
	e := newTestEditor(t, nil)
	p, _ := e.AddPath(Path{Name: "old", Status: "active"})

	cmd, err := e.UpdatePropertyCommand(KindPath, p.ID, "name", "new")
	require.NoError(t, err)
	assert.JSONEq(t, `"old"`, string(cmd.OldValue))
	require.NoError(t, e.Execute(cmd))

	got, _ := e.Path(p.ID)
	assert.Equal(t, "new", got.Name)
	require.True(t, e.Undo())
	got, _ = e.Path(p.ID)
	assert.Equal(t, "old", got.Name)
}

func TestUpdatePropertyLayerMovesMembership(t *testing.T) {
	e := newTestEditor(t, nil)
	home := e.ActiveLayerID()
	other, _ := e.AddLayer(Layer{ID: "other", Name: "Other"})
	first, _ := e.AddPoint(Point{})
	second, _ := e.AddPoint(Point{})
	third, _ := e.AddPoint(Point{})
	before := e.Document()

	cmd, err := e.UpdatePropertyCommand(KindPoint, second.ID, "layerId", other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cmd.MemberIndex)
	require.NoError(t, e.Execute(cmd))
	l, _ := e.Layer(other.ID)
	assert.Equal(t, []string{second.ID}, l.ElementIDs)
	l, _ = e.Layer(home)
	assert.Equal(t, []string{first.ID, third.ID}, l.ElementIDs)

	require.True(t, e.Undo())
	l, _ = e.Layer(home)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, l.ElementIDs)
	assert.Equal(t, before, e.Document())
}

// commandFixture is a document with three points, a path and a location in
// the default layer, plus an empty second layer.
type commandFixture struct {
	a, b, c, path, loc, other string
}

func newCommandFixture(t *testing.T) (*Editor, commandFixture) {
	t.Helper()
	e := newTestEditor(t, nil)
	var fx commandFixture
	other, err := e.AddLayer(Layer{ID: "other", Name: "Other"})
	require.NoError(t, err)
	fx.other = other.ID
	for _, id := range []*string{&fx.a, &fx.b, &fx.c} {
		p, err := e.AddPoint(Point{X: 1, Y: 2, Z: geom.Float(3), EditorProps: DefaultPointProps()})
		require.NoError(t, err)
		*id = p.ID
	}
	path, err := e.AddPath(Path{Name: "P", Geometry: PathGeometry{ControlPoints: []Vertex{
		{ID: "s", X: 0, Y: 0},
		{ID: "t", X: 10, Y: 0},
	}}, EditorProps: DefaultPathProps()})
	require.NoError(t, err)
	fx.path = path.ID
	loc, err := e.AddLocation(Location{
		Name:        "L",
		Geometry:    DefaultLocationGeometry("loc", geom.Pt(50, 50)),
		EditorProps: DefaultLocationProps(),
	})
	require.NoError(t, err)
	fx.loc = loc.ID
	return e, fx
}

// commandCases build one command of every kind against a commandFixture.
// They target distinct elements so that they can also run in sequence.
var commandCases = []struct {
	name  string
	build func(e *Editor, fx commandFixture) (*Command, error)
}{
	{"add point", func(_ *Editor, _ commandFixture) (*Command, error) {
		return NewAddCommand(KindPoint, Point{X: 7, Y: 8})
	}},
	{"delete first point", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.DeleteCommand(KindPoint, fx.a)
	}},
	{"move point", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.MoveCommand(KindPoint, fx.b, geom.Pt(40, 50))
	}},
	{"rename point", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.UpdatePropertyCommand(KindPoint, fx.b, "name", "Dock")
	}},
	{"relayer middle point", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.UpdatePropertyCommand(KindPoint, fx.c, "layerId", fx.other)
	}},
	{"move path", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.MoveCommand(KindPath, fx.path, geom.Pt(5, 5))
	}},
	{"relayer path", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.UpdatePropertyCommand(KindPath, fx.path, "layerId", fx.other)
	}},
	{"move location", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.MoveCommand(KindLocation, fx.loc, geom.Pt(80, 90))
	}},
	{"recolor location", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.UpdatePropertyCommand(KindLocation, fx.loc, "editorProps.fillColor", "#ff0000")
	}},
	{"delete location", func(e *Editor, fx commandFixture) (*Command, error) {
		return e.DeleteCommand(KindLocation, fx.loc)
	}},
}

func TestCommandUndoRedoRestoresDocument(t *testing.T) {
	for _, tc := range commandCases {
		t.Run(tc.name, func(t *testing.T) {
			e, fx := newCommandFixture(t)
			before := e.Document()

			cmd, err := tc.build(e, fx)
			require.NoError(t, err)
			require.NoError(t, e.Execute(cmd))
			after := e.Document()
			require.NotEqual(t, before, after)

			require.True(t, e.Undo())
			assert.Equal(t, before, e.Document(), "undo")

			require.True(t, e.Redo())
			assert.Equal(t, after, e.Document(), "redo")

			require.True(t, e.Undo())
			assert.Equal(t, before, e.Document(), "undo after redo")
		})
	}
}

func TestCommandSequenceUndoesToStart(t *testing.T) {
	e, fx := newCommandFixture(t)
	before := e.Document()

	for _, tc := range commandCases {
		cmd, err := tc.build(e, fx)
		require.NoError(t, err, tc.name)
		require.NoError(t, e.Execute(cmd), tc.name)
	}
	after := e.Document()

	for range commandCases {
		require.True(t, e.Undo())
	}
	assert.False(t, e.Undo())
	assert.Equal(t, before, e.Document())

	for range commandCases {
		require.True(t, e.Redo())
	}
	assert.Equal(t, after, e.Document())
}

func TestUpdatePropertyRejectsID(t *testing.T) {
	e := newTestEditor(t, nil)
	p, _ := e.AddPoint(Point{})
	_, err := e.UpdatePropertyCommand(KindPoint, p.ID, "id", "x")
	require.ErrorIs(t, err, ErrProtectedProperty)
}

func TestExecuteDiscardsRedo(t *testing.T) {
	e := newTestEditor(t, nil)
	first, _ := NewAddCommand(KindPoint, Point{})
	second, _ := NewAddCommand(KindPoint, Point{})
	require.NoError(t, e.Execute(first))
	require.True(t, e.Undo())
	require.True(t, e.CanRedo())

	require.NoError(t, e.Execute(second))
	assert.False(t, e.CanRedo())
	assert.False(t, e.Redo())
}

func TestHistoryIsBounded(t *testing.T) {
	e := newTestEditor(t, nil)
	for range history.DefaultLimit + 1 {
		cmd, err := NewAddCommand(KindPoint, Point{})
		require.NoError(t, err)
		require.NoError(t, e.Execute(cmd))
	}
	undo, redo := e.HistoryLen()
	assert.Equal(t, history.DefaultLimit, undo)
	assert.Zero(t, redo)

	for e.Undo() {
	}
	assert.Len(t, e.Points(), 1, "the evicted first add cannot be undone")
}

func TestCommandMarshalsAsData(t *testing.T) {
	cmd, err := NewMoveCommand(KindPoint, "p1", geom.Pt(0, 0), geom.Pt(1, 2))
	require.NoError(t, err)
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"move","element":"point","elementId":"p1","index":0,"memberIndex":0,
		"from":{"x":0,"y":0},"to":{"x":1,"y":2}}`, string(raw))
	assert.Equal(t, "move point", cmd.Description())
}
