package mapdoc

import "slices"

// collection is an ordered list of elements addressed by id.
type collection[T entity[T]] struct {
	items []T
}

func (c *collection[T]) index(id string) int {
	return slices.IndexFunc(c.items, func(it T) bool { return it.elementID() == id })
}

func (c *collection[T]) get(id string) (T, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i].clone(), true
	}
	var zero T
	return zero, false
}

// insert places item at position at. An out-of-range position appends.
func (c *collection[T]) insert(item T, at int) {
	if at < 0 || at > len(c.items) {
		at = len(c.items)
	}
	c.items = slices.Insert(c.items, at, item)
}

func (c *collection[T]) removeAt(i int) T {
	item := c.items[i]
	c.items = slices.Delete(c.items, i, i+1)
	return item
}

func (c *collection[T]) snapshot() []T {
	return cloneEach(c.items, cloneOf[T])
}

func (c *collection[T]) reset(items []T) {
	c.items = cloneEach(items, cloneOf[T])
}

// idsInLayer lists the elements whose LayerID is layerID.
func (c *collection[T]) idsInLayer(layerID string) []string {
	var ids []string
	for _, it := range c.items {
		if it.layerOf() == layerID {
			ids = append(ids, it.elementID())
		}
	}
	return ids
}

func cloneOf[T entity[T]](it T) T { return it.clone() }
