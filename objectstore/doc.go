// Package objectstore wraps a bare Git repository as a hierarchical,
// branchable object store. It owns every direct interaction with
// go-git: blob/tree/commit encoding, ref reads and writes, branch
// creation, the two-way merge algorithm, and transaction-log lookups.
//
// # Persistence
//
//	p, err := objectstore.Open("/var/herodb/stores/widgets.git", core.Identity{Name: "herodb", Email: "herodb@localhost"})
//	hash, err := p.CreateBlob([]byte(`"hello"`))
//
// Every store is a single bare repository; branches are plain
// refs/heads/<name> references, and there is never a checked-out
// worktree. Callers serialize access with RLock/RUnlock for reads and
// Lock/Unlock for writes; apart from Gc, which holds the write lock for
// the whole compaction, none of the exported methods take the lock
// themselves, so a caller composing several plumbing calls into one
// transaction acquires the lock exactly once.
package objectstore
