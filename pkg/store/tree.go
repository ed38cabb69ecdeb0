// Package store holds the in-memory block indices of a document session and the
// optimistic mutation primitives that are the only way to write them.
//
// Three indices are kept per session:
//
//   - blocks by id
//   - blocks by page
//   - ordered child ids by page and parent key, where the parent key of a root
//     block is [RootKey]
//
// Readers use the locked accessors on [Tree]. Writers run inside [Tree.Update]
// and receive a [Mutator]; everything done in one Update is atomic to readers.
package store

import (
	"sort"
	"sync"

	"github.com/surrealdb/blocktree/pkg/models"
)

// RootKey is the parent key of top-level blocks.
const RootKey = "root"

// ParentKeyOf returns the children-index key for a parent id.
func ParentKeyOf(parentID string) string {
	if parentID == "" {
		return RootKey
	}
	return parentID
}

type index struct {
	blocksByID         map[string]*models.Block
	blocksByPage       map[string]map[string]*models.Block
	childrenByParentID map[string]map[string][]string
}

// Tree is the block read model of a session.
type Tree struct {
	mu sync.RWMutex
	ix index
}

func New() *Tree {
	return &Tree{
		ix: index{
			blocksByID:         map[string]*models.Block{},
			blocksByPage:       map[string]map[string]*models.Block{},
			childrenByParentID: map[string]map[string][]string{},
		},
	}
}

// Update runs fn with exclusive access to the indices.
func (t *Tree) Update(fn func(m *Mutator) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(&Mutator{ix: &t.ix})
}

// Block returns a copy of the block with the given id.
func (t *Tree) Block(id string) (models.Block, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ix.snapshot(id)
}

// HasPage reports whether the page has been loaded or touched in this session.
func (t *Tree) HasPage(pageID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ix.blocksByPage[pageID]
	return ok
}

// Pages returns the ids of all pages known to the tree, sorted.
func (t *Tree) Pages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pages := make([]string, 0, len(t.ix.blocksByPage))
	for id := range t.ix.blocksByPage {
		pages = append(pages, id)
	}
	sort.Strings(pages)
	return pages
}

// Len returns the number of blocks in a page.
func (t *Tree) Len(pageID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ix.blocksByPage[pageID])
}

// Children returns the ordered child ids of parentID, or of the page root when
// parentID is empty.
func (t *Tree) Children(pageID, parentID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ix.childIDs(pageID, ParentKeyOf(parentID))
}

// ChildrenByKey returns the ordered child ids stored under a raw parent key.
func (t *Tree) ChildrenByKey(pageID, key string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ix.childIDs(pageID, key)
}

// ParentKeys returns every parent key that has a children bucket in the page.
func (t *Tree) ParentKeys(pageID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.ix.childrenByParentID[pageID]))
	for k := range t.ix.childrenByParentID[pageID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PageBlocks returns copies of a page's blocks in document (depth-first) order.
func (t *Tree) PageBlocks(pageID string) []models.Block {
	var out []models.Block
	t.Walk(pageID, func(b models.Block, _ int) bool {
		out = append(out, b)
		return true
	})
	return out
}

// Walk visits a page's blocks depth-first in sibling order. Returning false from
// fn stops the walk.
func (t *Tree) Walk(pageID string, fn func(b models.Block, depth int) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.ix.walk(pageID, RootKey, 0, fn)
}

func (ix *index) walk(pageID, key string, depth int, fn func(models.Block, int) bool) bool {
	for _, id := range ix.childrenByParentID[pageID][key] {
		b, ok := ix.blocksByID[id]
		if !ok {
			continue
		}
		if !fn(b.Clone(), depth) {
			return false
		}
		if !ix.walk(pageID, id, depth+1, fn) {
			return false
		}
	}
	return true
}

func (ix *index) snapshot(id string) (models.Block, bool) {
	b, ok := ix.blocksByID[id]
	if !ok {
		return models.Block{}, false
	}
	return b.Clone(), true
}

func (ix *index) childIDs(pageID, key string) []string {
	ids := ix.childrenByParentID[pageID][key]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func (ix *index) ensurePageMap(pageID string) {
	if _, ok := ix.blocksByPage[pageID]; !ok {
		ix.blocksByPage[pageID] = map[string]*models.Block{}
	}
	if _, ok := ix.childrenByParentID[pageID]; !ok {
		ix.childrenByParentID[pageID] = map[string][]string{}
	}
}

func (ix *index) blockInPage(pageID, id string) (*models.Block, error) {
	b, ok := ix.blocksByID[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	if b.PageID != pageID {
		return nil, ErrPageMismatch
	}
	return b, nil
}

// isAncestor reports whether ancestorID is id itself or one of its ancestors.
func (ix *index) isAncestor(ancestorID, id string) bool {
	seen := map[string]bool{}
	for cur := id; cur != ""; {
		if cur == ancestorID {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		b, ok := ix.blocksByID[cur]
		if !ok {
			return false
		}
		cur = b.ParentID
	}
	return false
}

// sortSiblingsByPosition orders ids by position, then id. The sort is stable.
func (ix *index) sortSiblingsByPosition(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ix.blocksByID[ids[i]], ix.blocksByID[ids[j]]
		if a == nil || b == nil {
			return a != nil
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}

func (ix *index) insertChild(pageID, key, id string) {
	ix.ensurePageMap(pageID)
	ids := ix.childrenByParentID[pageID][key]
	for _, existing := range ids {
		if existing == id {
			ix.sortSiblingsByPosition(ids)
			return
		}
	}
	ids = append(ids, id)
	ix.sortSiblingsByPosition(ids)
	ix.childrenByParentID[pageID][key] = ids
}

func (ix *index) removeChild(pageID, key, id string) int {
	ids := ix.childrenByParentID[pageID][key]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i], ids[i+1:]...)
			if len(ids) == 0 && key != RootKey {
				delete(ix.childrenByParentID[pageID], key)
			} else {
				ix.childrenByParentID[pageID][key] = ids
			}
			return i
		}
	}
	return -1
}
