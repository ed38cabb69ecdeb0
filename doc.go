// Package blocktree is the client-side engine of a block-based page editor.
//
// A page is a tree of typed blocks. A [Session] keeps the blocks of every page
// it has loaded in memory, applies each edit to that tree at once and then
// persists it through a [client.Persistence]. Edits are optimistic: readers see
// the change before the server confirms it.
//
// # Actions
//
// [Session.CreateBlock], [Session.MoveBlock], [Session.Indent],
// [Session.Outdent], [Session.DeleteBlock], [Session.UpdateBlock],
// [Session.BatchAddBlocksAfter], [Session.DuplicateSubtree] and
// [Session.TransferSubtree] each return a [Result] carrying the final
// [models.MutationState] of the edit.
//
// A refused action returns a [*ValidationError] and changes nothing. A request
// the server rejects returns a [*NetworkError]. Content updates are then rolled
// back to their previous values, and structural edits refetch the whole page
// with [Session.FetchBlocksForPage].
//
// # Ordering
//
// Sibling order comes from fractional position keys, see [position.Between].
// Blocks created locally carry temporary ids until the server answers; they are
// renamed in place, so they never disappear from the tree.
//
// Page fetches and content patches take generation tokens from
// [epoch.Registry]. Only the response to the latest token of a page or block
// may change the tree, so late answers to superseded requests are ignored.
//
// # History
//
// Every action records an undo entry with explicit undo and redo op lists.
// [Session.Undo] and [Session.Redo] replay them locally and persist the result.
// [Session.Domain] plugs the block history into a [history.Chain].
package blocktree
