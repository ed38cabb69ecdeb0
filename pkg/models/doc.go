// Package models defines the block data model shared by the tree, the history and
// the persistence client.
//
// A [Block] is an envelope (id, page, parent, position, type) around a payload
// chosen by its [BlockType]: [Paragraph], [Heading], [List], [Todo], [Quote], [Code],
// [Image] and [Divider] are modelled, anything else travels as [Raw].
//
// Non-structural edits are expressed as [Patch] values. A patch never carries a
// parent or a position; those change only through moves. [Patch.Invert] captures
// the values a patch would overwrite, which is what rollbacks and undo entries use.
//
// [MutationState] is the lifecycle of one optimistic mutation:
//
//	Clean -> Optimistic -> Committed | RolledBack | Resynced
package models
