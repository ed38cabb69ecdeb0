package store

import "fmt"

// RenameIDs rewrites block ids in place: the record keys, every ParentID that
// points at a renamed block, the children bucket keys and the sibling entries.
// Records keep their identity, so a renamed block is never absent from the
// indices. The whole mapping is validated before anything changes.
func (m *Mutator) RenameIDs(pageID string, mapping map[string]string) error {
	targets := make(map[string]string, len(mapping))
	for from, to := range mapping {
		if from == to {
			continue
		}
		if _, err := m.ix.blockInPage(pageID, from); err != nil {
			return fmt.Errorf("rename %s: %w", from, err)
		}
		if to == "" || to == RootKey {
			return fmt.Errorf("rename %s: %w: %q", from, ErrInvalidID, to)
		}
		if _, ok := m.ix.blocksByID[to]; ok {
			return fmt.Errorf("rename %s to %s: %w", from, to, ErrIDInUse)
		}
		if other, ok := targets[to]; ok {
			return fmt.Errorf("rename %s and %s to %s: %w", other, from, to, ErrIDInUse)
		}
		targets[to] = from
	}
	if len(targets) == 0 {
		return nil
	}

	rename := func(id string) string {
		if to, ok := mapping[id]; ok {
			return to
		}
		return id
	}

	for _, b := range m.ix.blocksByPage[pageID] {
		b.ParentID = rename(b.ParentID)
	}

	for to, from := range targets {
		rec := m.ix.blocksByID[from]
		rec.ID = to
		delete(m.ix.blocksByID, from)
		delete(m.ix.blocksByPage[pageID], from)
		m.ix.blocksByID[to] = rec
		m.ix.blocksByPage[pageID][to] = rec
	}

	buckets := m.ix.childrenByParentID[pageID]
	for to, from := range targets {
		if ids, ok := buckets[from]; ok {
			delete(buckets, from)
			buckets[to] = ids
		}
	}
	for _, ids := range buckets {
		for i, id := range ids {
			ids[i] = rename(id)
		}
		m.ix.sortSiblingsByPosition(ids)
	}
	return nil
}
