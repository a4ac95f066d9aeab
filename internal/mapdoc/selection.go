package mapdoc

import (
	"fmt"
	"slices"
)

// Selection is the set of selected elements. All ids share one kind.
type Selection struct {
	Kind ElementKind `json:"kind,omitempty"`
	IDs  []string    `json:"ids"`
}

func (s Selection) Empty() bool { return len(s.IDs) == 0 }

func (s Selection) Contains(id string) bool { return slices.Contains(s.IDs, id) }

func (s Selection) clone() Selection {
	s.IDs = cloneSlice(s.IDs)
	return s
}

func (s *Selection) remove(id string) {
	s.IDs = slices.DeleteFunc(s.IDs, func(x string) bool { return x == id })
	if len(s.IDs) == 0 {
		*s = Selection{}
	}
}

// SelectElement selects id, which must be an element of kind. Without multi,
// or when kind differs from the current selection, the selection restarts.
func (e *Editor) SelectElement(id string, kind ElementKind, multi bool) error {
	if got, ok := e.kindOf(id); !ok || got != kind {
		return fmt.Errorf("mapdoc: select %s %q: %w", kind, id, ErrElementNotFound)
	}
	if !multi || e.selection.Kind != kind {
		e.selection = Selection{Kind: kind, IDs: []string{id}}
		return nil
	}
	if !e.selection.Contains(id) {
		e.selection.IDs = append(e.selection.IDs, id)
	}
	return nil
}

func (e *Editor) ClearSelection() {
	e.selection = Selection{}
}

// SelectedElements returns copies of the selected elements in selection
// order.
func (e *Editor) SelectedElements() []any {
	out := make([]any, 0, len(e.selection.IDs))
	for _, id := range e.selection.IDs {
		if el, ok := e.element(e.selection.Kind, id); ok {
			out = append(out, el)
		}
	}
	return out
}
