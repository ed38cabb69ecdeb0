// Package history records reversible transactions against a block tree and
// replays them for undo and redo.
//
// Callers capture both op-lists of a [Transaction] at the moment of the action,
// from snapshots, so inversion stays correct even if the blocks change again
// later. [ApplyTransactionLocal] replays an op-list through the same local
// primitives every action uses. Ops that no longer fit the tree are skipped and
// reported as [ErrInconsistentHistory] instead of panicking.
package history
