package client

import (
	"context"

	"github.com/surrealdb/blocktree/pkg/models"
)

// Persistence is the server contract a session writes through. *Client is the
// HTTP implementation; tests may substitute their own.
type Persistence interface {
	GetPage(ctx context.Context, pageID string) ([]RawBlock, error)
	CreateBlock(ctx context.Context, pageID string, req CreateBlockRequest) (RawBlock, error)
	BatchCreate(ctx context.Context, pageID string, req BatchRequest) (BatchResponse, error)
	PatchBlock(ctx context.Context, blockID string, fields map[string]any) error
	DeleteBlock(ctx context.Context, blockID string) error
	DuplicateSubtree(ctx context.Context, blockID string) ([]RawBlock, error)
	TransferSubtree(ctx context.Context, pageID string, req TransferRequest) ([]RawBlock, error)
}

// CreateBlockRequest is the body of POST /pages/{id}/blocks.
type CreateBlockRequest struct {
	ParentBlock WireID         `json:"parent_block" cbor:"parent_block"`
	Position    string         `json:"position" cbor:"position"`
	Kind        string         `json:"kind" cbor:"kind"`
	Type        string         `json:"type" cbor:"type"`
	Content     map[string]any `json:"content" cbor:"content"`
	Props       map[string]any `json:"props,omitempty" cbor:"props,omitempty"`
	Layout      string         `json:"layout,omitempty" cbor:"layout,omitempty"`
	Width       float64        `json:"width,omitempty" cbor:"width,omitempty"`
}

// NewCreateBlockRequest builds the create body for a local block.
func NewCreateBlockRequest(b models.Block) (CreateBlockRequest, error) {
	raw, err := ToRaw(b)
	if err != nil {
		return CreateBlockRequest{}, err
	}
	return CreateBlockRequest{
		ParentBlock: raw.ParentBlock,
		Position:    raw.Position,
		Kind:        raw.Kind,
		Type:        raw.Type,
		Content:     raw.Content,
		Props:       raw.Props,
		Layout:      raw.Layout,
		Width:       raw.Width,
	}, nil
}

// BatchBlock is one node of a batch insert forest on the wire.
type BatchBlock struct {
	TempID   string         `json:"temp_id" cbor:"temp_id"`
	Kind     string         `json:"kind" cbor:"kind"`
	Type     string         `json:"type" cbor:"type"`
	Content  map[string]any `json:"content" cbor:"content"`
	Props    map[string]any `json:"props,omitempty" cbor:"props,omitempty"`
	Position string         `json:"position" cbor:"position"`
	Children []BatchBlock   `json:"children,omitempty" cbor:"children,omitempty"`
}

// BatchRequest is the body of POST /pages/{id}/blocks/batch.
type BatchRequest struct {
	ParentBlock  WireID       `json:"parent_block" cbor:"parent_block"`
	AfterBlockID WireID       `json:"after_block_id" cbor:"after_block_id"`
	Blocks       []BatchBlock `json:"blocks" cbor:"blocks"`
}

// BatchResponse maps the temporary ids of a batch to server ids.
type BatchResponse struct {
	IDs         []WireID          `json:"ids" cbor:"ids"`
	TopLevelIDs []WireID          `json:"topLevelIds" cbor:"topLevelIds"`
	Map         map[string]WireID `json:"map" cbor:"map"`
}

// TransferRequest is the body of POST /pages/{id}/transfer-subtree.
type TransferRequest struct {
	RootID        WireID `json:"root_id" cbor:"root_id"`
	ToPageID      WireID `json:"to_page_id" cbor:"to_page_id"`
	ToParentBlock WireID `json:"to_parent_block" cbor:"to_parent_block"`
	AfterBlockID  WireID `json:"after_block_id" cbor:"after_block_id"`
}

type blocksEnvelope struct {
	Blocks []RawBlock `json:"blocks" cbor:"blocks"`
}

// MoveFields is the PATCH body of a move. An empty parent encodes as null.
func MoveFields(parentID, position string) map[string]any {
	fields := map[string]any{"position": position, "parent_block": nil}
	if parentID != "" {
		fields["parent_block"] = parentID
	}
	return fields
}
