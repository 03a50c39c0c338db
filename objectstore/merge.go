package objectstore

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/herodb/herodb/core"
)

// MergeResult describes the outcome of merging source into target.
type MergeResult struct {
	Transaction Transaction
	Changed     []string // paths touched by the merge, for observability
}

// Merge merges source into target using an unconditional two-way,
// source-wins tree diff: target and source's trees are diffed directly
// against each other (not against a common ancestor), and every path the
// diff reports as added or modified is copied from source into target
// verbatim; every path reported as deleted in source is removed from
// target. go-git's tree diff never reports a single change as a rename —
// it always reports the old path as a delete and the new path as an
// insert — so there is no separate copy/rename case to special-case here;
// it already falls out of the add/delete handling above.
func (p *Persistence) Merge(source, target string, identity core.Identity, message string) (MergeResult, error) {
	targetTreeHash, err := p.resolveBranchTreeOrFork(target)
	if err != nil {
		return MergeResult{}, err
	}
	sourceTreeHash, err := p.BranchTree(source)
	if err != nil {
		return MergeResult{}, fmt.Errorf("objectstore: resolve source branch %s: %w", source, err)
	}

	targetTree, err := p.Tree(targetTreeHash)
	if err != nil {
		return MergeResult{}, err
	}
	sourceTree, err := p.Tree(sourceTreeHash)
	if err != nil {
		return MergeResult{}, err
	}

	changes, err := targetTree.Diff(sourceTree)
	if err != nil {
		return MergeResult{}, fmt.Errorf("objectstore: diff branches: %w", err)
	}

	var treeChanges []TreeChange
	var touched []string

	for _, change := range changes {
		fromName := change.From.Name
		toName := change.To.Name

		if toName != "" {
			// Added or modified in source: copy source's entry verbatim.
			entry := change.To.TreeEntry
			if entry.Mode == filemode.Dir {
				continue // directories are materialized implicitly via their leaves
			}
			treeChanges = append(treeChanges, TreeChange{Path: toName, BlobHash: entry.Hash})
			touched = append(touched, toName)
		}
		if fromName != "" && (toName == "" || fromName != toName) {
			// Deleted in source (or the "from" side of a delete+insert rename pair).
			fromEntry := change.From.TreeEntry
			if fromEntry.Mode == filemode.Dir {
				continue
			}
			treeChanges = append(treeChanges, TreeChange{Path: fromName, IsDelete: true})
			touched = append(touched, fromName)
		}
	}

	newTreeHash, err := p.BatchUpdateTree(targetTreeHash, treeChanges)
	if err != nil {
		return MergeResult{}, fmt.Errorf("objectstore: apply merge diff: %w", err)
	}

	txn, err := p.CommitOnBranch(target, newTreeHash, identity, message)
	if err != nil {
		return MergeResult{}, err
	}
	return MergeResult{Transaction: txn, Changed: touched}, nil
}

func (p *Persistence) resolveBranchTreeOrFork(branch string) (plumbing.Hash, error) {
	_, ok, err := p.BranchHead(branch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if ok {
		return p.BranchTree(branch)
	}
	return p.BranchTree(MasterBranch)
}

// Diff reports the paths that differ between the tree at transaction id
// and the tree at master's current tip (HeroDB's /diff/<sha> endpoint).
func (p *Persistence) Diff(id string) ([]DiffEntry, error) {
	fromTreeHash, err := p.TreeAtTransaction(id)
	if err != nil {
		return nil, err
	}
	toTreeHash, err := p.BranchTree(MasterBranch)
	if err != nil {
		return nil, err
	}

	fromTree, err := p.Tree(fromTreeHash)
	if err != nil {
		return nil, err
	}
	toTree, err := p.Tree(toTreeHash)
	if err != nil {
		return nil, err
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("objectstore: diff: %w", err)
	}

	var out []DiffEntry
	for _, change := range changes {
		out = append(out, classifyChange(change))
	}
	return out, nil
}

// DiffEntry is one changed path reported by Diff.
type DiffEntry struct {
	Path   string
	Action string // "added", "deleted", "modified"
}

func classifyChange(change *object.Change) DiffEntry {
	from, to := change.From.Name, change.To.Name
	switch {
	case from == "":
		return DiffEntry{Path: to, Action: "added"}
	case to == "":
		return DiffEntry{Path: from, Action: "deleted"}
	default:
		return DiffEntry{Path: to, Action: "modified"}
	}
}
