// Package workspace keeps the map editors that are currently open and
// coordinates loading, editing and saving them.
//
// Each open map is a session holding one mapdoc.Editor behind a mutex.
// Saves of the same map are collapsed with singleflight: the document is
// serialized under the session lock, uploaded outside of it, and marked clean
// only if no edit happened in between.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/catalog"
	"github.com/starford/mapforge/internal/checksum"
	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/mapdoc"
)

// ErrNotOpen is returned for operations on a map without a session.
var ErrNotOpen = fmt.Errorf("map is not open: %w", apperr.ErrNotFound)

// Session event kinds passed to a Publisher.
const (
	EventOpened  = "opened"
	EventChanged = "changed"
	EventSaved   = "saved"
	EventClosed  = "closed"
)

// Publisher receives session events.
type Publisher interface {
	PublishMapEvent(kind, mapID string)
}

type session struct {
	mu sync.Mutex
	ed *mapdoc.Editor
}

// Workspace is safe for concurrent use.
type Workspace struct {
	persist mapdoc.Persistence
	catalog catalog.Catalog
	events  Publisher
	logger  *slog.Logger
	now     func() time.Time
	edOpts  []mapdoc.Option
	snap    geom.Options

	mu       sync.Mutex
	sessions map[string]*session
	saves    singleflight.Group
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithCatalog updates c after every successful save.
func WithCatalog(c catalog.Catalog) Option {
	return func(w *Workspace) { w.catalog = c }
}

// WithPublisher sends session events to p.
func WithPublisher(p Publisher) Option {
	return func(w *Workspace) { w.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithEditorOptions applies opts to every editor the workspace creates.
func WithEditorOptions(opts ...mapdoc.Option) Option {
	return func(w *Workspace) { w.edOpts = append(w.edOpts, opts...) }
}

// WithSnapDefaults sets the snapping options used by Snap.
func WithSnapDefaults(o geom.Options) Option {
	return func(w *Workspace) { w.snap = o }
}

func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.now = now }
}

// New creates a workspace that loads and saves maps through p.
func New(p mapdoc.Persistence, opts ...Option) *Workspace {
	w := &Workspace{
		persist:  p,
		logger:   slog.Default(),
		now:      time.Now,
		snap:     geom.Options{ToPoint: true, ToLine: true},
		sessions: make(map[string]*session),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Workspace) publish(kind, mapID string) {
	if w.events != nil {
		w.events.PublishMapEvent(kind, mapID)
	}
}

func (w *Workspace) session(mapID string) (*session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[mapID]
	if !ok {
		return nil, fmt.Errorf("workspace: %s: %w", mapID, ErrNotOpen)
	}
	return s, nil
}

// Open loads mapID into a session, creating it if needed. Opening a map that
// is already open reloads it and discards unsaved edits.
func (w *Workspace) Open(ctx context.Context, mapID string) (*mapdoc.Document, error) {
	w.mu.Lock()
	s, existed := w.sessions[mapID]
	if !existed {
		opts := append([]mapdoc.Option{mapdoc.WithLogger(w.logger)}, w.edOpts...)
		s = &session{ed: mapdoc.New(w.persist, opts...)}
		w.sessions[mapID] = s
	}
	w.mu.Unlock()

	s.mu.Lock()
	doc, err := s.ed.LoadMap(ctx, mapID)
	s.mu.Unlock()
	if err != nil {
		if !existed {
			w.drop(mapID, s)
		}
		return nil, err
	}
	w.logger.Info("workspace: opened", slog.String("map_id", mapID))
	w.publish(EventOpened, mapID)
	return doc, nil
}

// drop removes s if it is still the session registered for mapID.
func (w *Workspace) drop(mapID string, s *session) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sessions[mapID] != s {
		return false
	}
	delete(w.sessions, mapID)
	return true
}

// Edit runs fn with exclusive access to the editor of mapID. A changed
// event is published when fn altered the document.
func (w *Workspace) Edit(mapID string, fn func(*mapdoc.Editor) error) error {
	s, err := w.session(mapID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	before := s.ed.Revision()
	err = fn(s.ed)
	changed := s.ed.Revision() != before
	s.mu.Unlock()

	if changed {
		w.publish(EventChanged, mapID)
	}
	return err
}

// View runs fn with exclusive access to the editor of mapID. fn must not
// modify the document.
func (w *Workspace) View(mapID string, fn func(*mapdoc.Editor) error) error {
	s, err := w.session(mapID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ed)
}

// Save persists the document of mapID. Concurrent calls for the same map
// share one upload. The upload is detached from the cancellation of whichever
// caller started it; a caller whose ctx ends stops waiting with ctx.Err().
func (w *Workspace) Save(ctx context.Context, mapID string) (*mapdoc.Document, error) {
	upload := context.WithoutCancel(ctx)
	ch := w.saves.DoChan(mapID, func() (any, error) {
		return w.save(upload, mapID)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("workspace: save %s: %w", mapID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*mapdoc.Document), nil
	}
}

func (w *Workspace) save(ctx context.Context, mapID string) (*mapdoc.Document, error) {
	s, err := w.session(mapID)
	if err != nil {
		return nil, err
	}
	if w.persist == nil {
		return nil, fmt.Errorf("workspace: save %s: %w", mapID, mapdoc.ErrNoPersistence)
	}

	s.mu.Lock()
	snap, err := s.ed.PrepareSave()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	err = w.persist.Save(ctx, snap.MapID, snap.Data)

	s.mu.Lock()
	s.ed.FinishSave(snap.Revision, err)
	s.mu.Unlock()

	if err != nil {
		w.logger.Error("workspace: save failed", slog.String("map_id", mapID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("workspace: save %s: %w", mapID, err)
	}
	w.logger.Info("workspace: saved", slog.String("map_id", mapID), slog.Int("bytes", len(snap.Data)))

	w.recordSave(ctx, snap)
	w.publish(EventSaved, mapID)
	return snap.Document, nil
}

// recordSave updates the catalog entry of a saved map. Failures are logged
// only; the save itself already succeeded.
func (w *Workspace) recordSave(ctx context.Context, snap *mapdoc.SaveSnapshot) {
	if w.catalog == nil {
		return
	}
	if prev, err := w.catalog.Get(ctx, snap.MapID); err == nil && checksum.Matches(snap.Data, prev.Checksum) {
		return
	}
	sum, err := catalog.Summarize(snap.MapID, snap.Data, w.now())
	if err == nil {
		err = w.catalog.Upsert(ctx, sum)
	}
	if err != nil {
		w.logger.Warn("workspace: catalog update failed", slog.String("map_id", snap.MapID), slog.String("error", err.Error()))
	}
}

// Close ends the session of mapID and resets its editor.
func (w *Workspace) Close(mapID string) error {
	s, err := w.session(mapID)
	if err != nil {
		return err
	}
	if !w.drop(mapID, s) {
		return fmt.Errorf("workspace: %s: %w", mapID, ErrNotOpen)
	}
	s.mu.Lock()
	s.ed.Reset()
	s.mu.Unlock()

	w.logger.Info("workspace: closed", slog.String("map_id", mapID))
	w.publish(EventClosed, mapID)
	return nil
}

// CloseAll ends every session. Unsaved edits are lost.
func (w *Workspace) CloseAll() {
	for _, id := range w.Sessions() {
		if err := w.Close(id); err != nil && !errors.Is(err, ErrNotOpen) {
			w.logger.Warn("workspace: close failed", slog.String("map_id", id), slog.String("error", err.Error()))
		}
	}
}

// Sessions returns the ids of all open maps, sorted.
func (w *Workspace) Sessions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SnapDefaults returns the configured snapping options.
func (w *Workspace) SnapDefaults() geom.Options { return w.snap }

// Snap snaps p against the document of mapID. opts replaces the configured
// options when non-nil.
func (w *Workspace) Snap(mapID string, p geom.Point, opts *geom.Options) (geom.Point, error) {
	o := w.snap
	if opts != nil {
		o = *opts
	}
	var out geom.Point
	err := w.View(mapID, func(ed *mapdoc.Editor) error {
		out = ed.Snap(p, o)
		return nil
	})
	return out, err
}
