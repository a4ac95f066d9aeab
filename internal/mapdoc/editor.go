package mapdoc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mapforge/internal/history"
)

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger. The default logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(e *Editor) { e.historyLimit = n }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// WithIDFunc replaces the element id generator. It receives the element
// kind as prefix.
func WithIDFunc(fn func(prefix string) string) Option {
	return func(e *Editor) { e.newID = fn }
}

// Editor owns one map document together with the editing state around it:
// active layer, selection, tool mode, canvas and undo history.
//
// An Editor is not safe for concurrent use.
type Editor struct {
	persist      Persistence
	logger       *slog.Logger
	now          func() time.Time
	newID        func(prefix string) string
	historyLimit int
	history      *history.Manager[*Command]

	mapID     string
	header    *Document
	groups    []LayerGroup
	layers    []Layer
	points    collection[Point]
	paths     collection[Path]
	locations collection[Location]

	activeLayerID string
	selection     Selection
	tool          ToolMode
	pointType     string
	connection    ConnectionType
	canvas        CanvasState

	pointCounter int
	loading      bool
	dirty        bool
	revision     uint64
}

// New returns an empty editor. p may be nil when the editor is only used
// in memory; LoadMap and SaveMap then fail with ErrNoPersistence.
func New(p Persistence, opts ...Option) *Editor {
	e := &Editor{
		persist: p,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   func(prefix string) string { return prefix + "_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.history = history.New[*Command](interpreter{e: e}, e.historyLimit)
	e.resetState()
	return e
}

func (e *Editor) resetState() {
	e.mapID = ""
	e.header = nil
	e.groups = []LayerGroup{}
	e.layers = []Layer{}
	e.points.reset(nil)
	e.paths.reset(nil)
	e.locations.reset(nil)
	e.activeLayerID = ""
	e.selection = Selection{}
	e.tool = ToolSelect
	e.pointType = DefaultPointType
	e.connection = ConnectDirect
	e.canvas = defaultCanvas()
	e.pointCounter = 0
	e.loading = false
	e.dirty = false
	e.history.Clear()
}

// Reset drops the document and every piece of editing state.
func (e *Editor) Reset() {
	e.resetState()
	e.revision++
}

// touch records a document mutation.
func (e *Editor) touch() {
	e.dirty = true
	e.revision++
}

func (e *Editor) MapID() string          { return e.mapID }
func (e *Editor) Loaded() bool           { return e.header != nil }
func (e *Editor) Dirty() bool            { return e.dirty }
func (e *Editor) Loading() bool          { return e.loading }
func (e *Editor) Revision() uint64       { return e.revision }
func (e *Editor) ActiveLayerID() string  { return e.activeLayerID }
func (e *Editor) Tool() ToolMode         { return e.tool }
func (e *Editor) PointType() string      { return e.pointType }
func (e *Editor) Canvas() CanvasState    { return e.canvas }
func (e *Editor) Selection() Selection   { return e.selection.clone() }
func (e *Editor) CanUndo() bool          { return e.history.CanUndo() }
func (e *Editor) CanRedo() bool          { return e.history.CanRedo() }
func (e *Editor) HistoryLen() (int, int) { return e.history.UndoLen(), e.history.RedoLen() }

func (e *Editor) PathConnectionType() ConnectionType { return e.connection }

// Execute applies cmd through the undo history.
func (e *Editor) Execute(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("mapdoc: execute: %w", ErrInvalidCommand)
	}
	if err := e.history.Execute(cmd); err != nil {
		return fmt.Errorf("mapdoc: %s: %w", cmd.Description(), err)
	}
	return nil
}

func (e *Editor) Undo() bool { return e.history.Undo() }
func (e *Editor) Redo() bool { return e.history.Redo() }

// SetTool switches the interaction mode and clears the selection.
func (e *Editor) SetTool(t ToolMode) error {
	switch t {
	case ToolSelect, ToolPoint, ToolPath, ToolLocation, ToolPan, ToolZoom:
	default:
		return fmt.Errorf("mapdoc: unknown tool %q: %w", t, ErrInvalidCommand)
	}
	e.tool = t
	e.selection = Selection{}
	return nil
}

// SetPointType sets the type given to points placed with the point tool.
func (e *Editor) SetPointType(t string) {
	e.pointType = t
}

func (e *Editor) SetPathConnectionType(c ConnectionType) error {
	switch c {
	case ConnectDirect, ConnectOrthogonal, ConnectCurve:
	default:
		return fmt.Errorf("mapdoc: unknown connection type %q: %w", c, ErrInvalidCommand)
	}
	e.connection = c
	return nil
}

// UpdateCanvas merges patch into the canvas state. The canvas is written to
// the map header on save, so this marks the document dirty.
func (e *Editor) UpdateCanvas(patch Patch) error {
	next, err := mergePatch(e.canvas, patch)
	if err != nil {
		return err
	}
	e.canvas = next
	e.touch()
	return nil
}

// Document returns a deep copy of the current document.
func (e *Editor) Document() *Document {
	doc := &Document{}
	if e.header != nil {
		doc = e.header.Clone()
	}
	doc.LayerGroups = cloneSlice(e.groups)
	doc.Layers = cloneEach(e.layers, Layer.clone)
	doc.Elements = Elements{
		Points:    e.points.snapshot(),
		Paths:     e.paths.snapshot(),
		Locations: e.locations.snapshot(),
	}
	return doc
}

// install replaces the editor state with doc, which must already be
// normalized.
func (e *Editor) install(mapID string, doc *Document) {
	e.resetState()
	e.mapID = mapID
	e.header = &Document{
		MapInfo:      doc.MapInfo,
		Metadata:     doc.Metadata,
		VisualLayout: doc.VisualLayout,
	}
	e.groups = cloneSlice(doc.LayerGroups)
	e.layers = cloneEach(doc.Layers, Layer.clone)
	e.points.reset(doc.Elements.Points)
	e.paths.reset(doc.Elements.Paths)
	e.locations.reset(doc.Elements.Locations)
	e.canvas = CanvasState{
		Scale:   doc.MapInfo.Scale,
		OffsetX: doc.MapInfo.OffsetX,
		OffsetY: doc.MapInfo.OffsetY,
		Width:   doc.MapInfo.Width,
		Height:  doc.MapInfo.Height,
	}
	e.syncPointCounter()
	e.activeLayerID = e.fallbackLayerID()
	e.revision++
}

// MapInfo returns the document header.
func (e *Editor) MapInfo() MapInfo {
	if e.header == nil {
		return MapInfo{}
	}
	return e.header.MapInfo
}

// UpdateMapInfo merges patch into the document header. The id is kept.
func (e *Editor) UpdateMapInfo(patch Patch) error {
	if e.header == nil {
		return fmt.Errorf("mapdoc: update map info: %w", ErrNoDocument)
	}
	cur := e.header.MapInfo
	next, err := mergePatch(cur, patch)
	if err != nil {
		return err
	}
	next.ID = cur.ID
	e.header.MapInfo = next
	e.touch()
	return nil
}
