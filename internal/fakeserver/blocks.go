package fakeserver

import (
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/position"
)

// Seed replaces a page's blocks. Missing pages and versions are filled in.
func (s *Server) Seed(pageID string, blocks ...client.RawBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := map[string]*client.RawBlock{}
	for i := range blocks {
		b := blocks[i]
		b.Page = client.WireID(pageID)
		if b.Version == 0 {
			b.Version = 1
		}
		page[b.ID.String()] = &b
	}
	s.pages[pageID] = page
}

// Blocks returns a page's blocks ordered by parent, position and id.
func (s *Server) Blocks(pageID string) []client.RawBlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageBlocks(pageID)
}

// Block returns one stored block.
func (s *Server) Block(id string) (client.RawBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, _ := s.find(id)
	if b == nil {
		return client.RawBlock{}, false
	}
	return *b, true
}

// Children returns the ordered child ids of parentID in a page; the empty
// parent lists the root blocks.
func (s *Server) Children(pageID, parentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childIDs(pageID, parentID)
}

func (s *Server) pageBlocks(pageID string) []client.RawBlock {
	out := make([]client.RawBlock, 0, len(s.pages[pageID]))
	for _, b := range s.pages[pageID] {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentBlock != out[j].ParentBlock {
			return out[i].ParentBlock < out[j].ParentBlock
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Server) childIDs(pageID, parentID string) []string {
	var kids []*client.RawBlock
	for _, b := range s.pages[pageID] {
		if b.ParentBlock.String() == parentID {
			kids = append(kids, b)
		}
	}
	sort.Slice(kids, func(i, j int) bool {
		if kids[i].Position != kids[j].Position {
			return kids[i].Position < kids[j].Position
		}
		return kids[i].ID < kids[j].ID
	})
	ids := make([]string, len(kids))
	for i, b := range kids {
		ids[i] = b.ID.String()
	}
	return ids
}

func (s *Server) find(id string) (*client.RawBlock, string) {
	for pageID, page := range s.pages {
		if b, ok := page[id]; ok {
			return b, pageID
		}
	}
	return nil, ""
}

// positionAfter returns a position directly after afterID among parentID's
// children, or first when afterID is empty.
func (s *Server) positionAfter(pageID, parentID, afterID string) string {
	siblings := s.childIDs(pageID, parentID)
	prev, next := "", ""
	idx := -1
	for i, id := range siblings {
		if id == afterID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		prev = s.pages[pageID][siblings[idx]].Position
	}
	if idx+1 < len(siblings) {
		next = s.pages[pageID][siblings[idx+1]].Position
	}
	return position.Between(prev, next)
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := requestCodec(r).Unmarshal(data, dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["id"]
	s.mu.RLock()
	blocks := s.pageBlocks(pageID)
	s.mu.RUnlock()
	s.write(w, r, http.StatusOK, map[string]any{"blocks": blocks})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["id"]
	var req client.CreateBlockRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ParentBlock != "" {
		if _, ok := s.pages[pageID][req.ParentBlock.String()]; !ok {
			s.writeError(w, r, http.StatusBadRequest, "parent block not in page")
			return
		}
	}
	if s.pages[pageID] == nil {
		s.pages[pageID] = map[string]*client.RawBlock{}
	}
	b := &client.RawBlock{
		ID:          client.WireID(newID()),
		Page:        client.WireID(pageID),
		ParentBlock: req.ParentBlock,
		Kind:        req.Kind,
		Type:        req.Type,
		Content:     req.Content,
		Props:       req.Props,
		Layout:      req.Layout,
		Width:       req.Width,
		Position:    req.Position,
		Version:     1,
		UpdatedAt:   time.Now().UTC(),
	}
	if b.Position == "" {
		b.Position = s.positionAfter(pageID, req.ParentBlock.String(), lastID(s.childIDs(pageID, req.ParentBlock.String())))
	}
	s.pages[pageID][b.ID.String()] = b
	s.write(w, r, http.StatusCreated, b)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["id"]
	var req client.BatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ParentBlock != "" {
		if _, ok := s.pages[pageID][req.ParentBlock.String()]; !ok {
			s.writeError(w, r, http.StatusBadRequest, "parent block not in page")
			return
		}
	}
	if s.pages[pageID] == nil {
		s.pages[pageID] = map[string]*client.RawBlock{}
	}

	resp := client.BatchResponse{Map: map[string]client.WireID{}}
	var insert func(parent client.WireID, items []client.BatchBlock, top bool)
	insert = func(parent client.WireID, items []client.BatchBlock, top bool) {
		for _, item := range items {
			id := client.WireID(newID())
			s.pages[pageID][id.String()] = &client.RawBlock{
				ID:          id,
				Page:        client.WireID(pageID),
				ParentBlock: parent,
				Kind:        item.Kind,
				Type:        item.Type,
				Content:     item.Content,
				Props:       item.Props,
				Position:    item.Position,
				Version:     1,
				UpdatedAt:   time.Now().UTC(),
			}
			resp.IDs = append(resp.IDs, id)
			if top {
				resp.TopLevelIDs = append(resp.TopLevelIDs, id)
			}
			if item.TempID != "" {
				resp.Map[item.TempID] = id
			}
			insert(id, item.Children, false)
		}
	}
	insert(req.ParentBlock, req.Blocks, true)
	s.write(w, r, http.StatusOK, resp)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	fields := map[string]any{}
	if !s.decode(w, r, &fields) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, pageID := s.find(id)
	if b == nil {
		s.writeError(w, r, http.StatusNotFound, "block not found")
		return
	}

	next := *b
	for k, v := range fields {
		switch k {
		case "parent_block":
			parent, _ := v.(string)
			if parent != "" {
				if _, ok := s.pages[pageID][parent]; !ok || s.isAncestor(pageID, id, parent) {
					s.writeError(w, r, http.StatusBadRequest, "invalid parent_block")
					return
				}
			}
			next.ParentBlock = client.WireID(parent)
		case "position":
			next.Position, _ = v.(string)
		case "type":
			next.Type, _ = v.(string)
		case "content":
			next.Content, _ = v.(map[string]any)
		case "props":
			next.Props, _ = v.(map[string]any)
		case "layout":
			next.Layout, _ = v.(string)
		case "width":
			switch n := v.(type) {
			case float64:
				next.Width = n
			case uint64:
				next.Width = float64(n)
			case int64:
				next.Width = float64(n)
			}
		default:
			s.writeError(w, r, http.StatusBadRequest, "unknown field "+k)
			return
		}
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	*b = next
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) isAncestor(pageID, ancestorID, id string) bool {
	for cur, hops := id, 0; cur != "" && hops <= len(s.pages[pageID]); hops++ {
		if cur == ancestorID {
			return true
		}
		b, ok := s.pages[pageID][cur]
		if !ok {
			return false
		}
		cur = b.ParentBlock.String()
	}
	return false
}

// handleDelete removes one block. Children still pointing at it are promoted to
// its parent, mirroring the client.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	b, pageID := s.find(id)
	if b == nil {
		s.writeError(w, r, http.StatusNotFound, "block not found")
		return
	}
	for _, child := range s.pages[pageID] {
		if child.ParentBlock.String() == id {
			child.ParentBlock = b.ParentBlock
		}
	}
	delete(s.pages[pageID], id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	root, pageID := s.find(id)
	if root == nil {
		s.writeError(w, r, http.StatusNotFound, "block not found")
		return
	}

	var copies []client.RawBlock
	var dup func(src *client.RawBlock, parent client.WireID, pos string)
	dup = func(src *client.RawBlock, parent client.WireID, pos string) {
		c := *src
		c.ID = client.WireID(newID())
		c.ParentBlock = parent
		c.Position = pos
		c.Version = 1
		c.UpdatedAt = time.Now().UTC()
		children := s.childIDs(pageID, src.ID.String())
		s.pages[pageID][c.ID.String()] = &c
		copies = append(copies, c)
		for _, childID := range children {
			child := s.pages[pageID][childID]
			dup(child, c.ID, child.Position)
		}
	}
	dup(root, root.ParentBlock, s.positionAfter(pageID, root.ParentBlock.String(), id))
	s.write(w, r, http.StatusOK, map[string]any{"blocks": copies})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	fromPage := mux.Vars(r)["id"]
	var req client.TransferRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	root, ok := s.pages[fromPage][req.RootID.String()]
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "root block not in page")
		return
	}
	toPage := req.ToPageID.String()
	if toPage == "" {
		s.writeError(w, r, http.StatusBadRequest, "to_page_id required")
		return
	}
	if req.ToParentBlock != "" {
		if _, ok := s.pages[toPage][req.ToParentBlock.String()]; !ok {
			s.writeError(w, r, http.StatusBadRequest, "to_parent_block not in target page")
			return
		}
	}
	if s.pages[toPage] == nil {
		s.pages[toPage] = map[string]*client.RawBlock{}
	}

	var moved []client.RawBlock
	var move func(b *client.RawBlock)
	move = func(b *client.RawBlock) {
		children := s.childIDs(fromPage, b.ID.String())
		delete(s.pages[fromPage], b.ID.String())
		b.Page = client.WireID(toPage)
		b.Version++
		s.pages[toPage][b.ID.String()] = b
		moved = append(moved, *b)
		for _, childID := range children {
			move(s.pages[fromPage][childID])
		}
	}
	root.ParentBlock = req.ToParentBlock
	root.Position = s.positionAfter(toPage, req.ToParentBlock.String(), req.AfterBlockID.String())
	move(root)
	s.write(w, r, http.StatusOK, map[string]any{"blocks": moved})
}

func lastID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}
