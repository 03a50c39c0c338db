package objectstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/herodb/herodb/core"
)

// Transaction identifies a single commit: its hash and when it was made.
type Transaction struct {
	ID   string
	When time.Time
}

func (t Transaction) String() string { return t.ID }

// IsZero reports whether t carries no commit (returned when a write was a
// no-op because the tree did not change).
func (t Transaction) IsZero() bool { return t.ID == "" }

// createCommit encodes and stores a commit object; it does not touch any
// ref. Callers update refs/heads/<branch> themselves via SetBranchHead.
func (p *Persistence) createCommit(treeHash plumbing.Hash, parents []plumbing.Hash, identity core.Identity, message string) (plumbing.Hash, error) {
	sig := object.Signature{Name: identity.Name, Email: identity.Email, When: time.Now()}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}
	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: encode commit: %w", err)
	}
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: store commit: %w", err)
	}
	return hash, nil
}

// CommitOnBranch creates a commit with treeHash as its tree and the
// branch's current tip (if any) as its sole parent, then advances the
// branch ref to the new commit. If branch has no ref yet, it is implicitly
// created forking from master's current tip (or as a root commit if this
// is master itself and it has no commits, which Open already prevents).
// If treeHash is unchanged from the branch's current tree, no commit is
// created and a zero Transaction is returned.
func (p *Persistence) CommitOnBranch(branch string, treeHash plumbing.Hash, identity core.Identity, message string) (Transaction, error) {
	parentHash, hasParent, err := p.resolveBranchOrFork(branch)
	if err != nil {
		return Transaction{}, err
	}

	var parents []plumbing.Hash
	if hasParent {
		parentCommit, err := p.repo.CommitObject(parentHash)
		if err != nil {
			return Transaction{}, fmt.Errorf("objectstore: resolve parent: %w", err)
		}
		if parentCommit.TreeHash == treeHash {
			return Transaction{}, nil
		}
		parents = []plumbing.Hash{parentHash}
	}

	commitHash, err := p.createCommit(treeHash, parents, identity, message)
	if err != nil {
		return Transaction{}, err
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), commitHash)
	if err := p.repo.Storer.SetReference(ref); err != nil {
		return Transaction{}, fmt.Errorf("objectstore: update branch %s: %w", branch, err)
	}

	commit, err := p.repo.CommitObject(commitHash)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{ID: commitHash.String(), When: commit.Committer.When}, nil
}

// CommitOnBranchWithParents creates a commit with treeHash as its tree and
// an explicit parent set, then advances branch's ref to it. Unlike
// CommitOnBranch it never consults branch's own current tip to decide
// parentage, so callers use it when a write must be built from a tree other
// than branch's own (delete's fall-back-to-master case, which produces a
// merge commit carrying both branch's previous tip and master's tip as
// parents). Parents that repeat or are the zero hash are dropped.
func (p *Persistence) CommitOnBranchWithParents(branch string, treeHash plumbing.Hash, parents []plumbing.Hash, identity core.Identity, message string) (Transaction, error) {
	seen := make(map[plumbing.Hash]bool, len(parents))
	var dedup []plumbing.Hash
	for _, h := range parents {
		if h == plumbing.ZeroHash || seen[h] {
			continue
		}
		seen[h] = true
		dedup = append(dedup, h)
	}

	commitHash, err := p.createCommit(treeHash, dedup, identity, message)
	if err != nil {
		return Transaction{}, err
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), commitHash)
	if err := p.repo.Storer.SetReference(ref); err != nil {
		return Transaction{}, fmt.Errorf("objectstore: update branch %s: %w", branch, err)
	}

	commit, err := p.repo.CommitObject(commitHash)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{ID: commitHash.String(), When: commit.Committer.When}, nil
}

// resolveBranchOrFork returns branch's current tip. If branch has no ref
// yet, writes to it implicitly fork from master's tip (spec's "write to a
// nonexistent branch creates it from master" semantics).
func (p *Persistence) resolveBranchOrFork(branch string) (plumbing.Hash, bool, error) {
	hash, ok, err := p.BranchHead(branch)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	if ok {
		return hash, true, nil
	}
	if branch == MasterBranch {
		return plumbing.ZeroHash, false, nil
	}
	return p.BranchHead(MasterBranch)
}

// BranchHead returns the commit hash at the tip of branch.
func (p *Persistence) BranchHead(branch string) (plumbing.Hash, bool, error) {
	ref, err := p.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, fmt.Errorf("objectstore: resolve branch %s: %w", branch, err)
	}
	return ref.Hash(), true, nil
}

// BranchTree returns the tree hash at the tip of branch.
func (p *Persistence) BranchTree(branch string) (plumbing.Hash, error) {
	hash, ok, err := p.BranchHead(branch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if !ok {
		return plumbing.ZeroHash, ErrBranchNotFound
	}
	commit, err := p.repo.CommitObject(hash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: commit %s: %w", hash, err)
	}
	return commit.TreeHash, nil
}

// CreateBranch creates branch pointing at from (a commit hash, defaulting
// to master's current tip when from is the zero Transaction).
func (p *Persistence) CreateBranch(branch string, from Transaction) (Transaction, error) {
	var hash plumbing.Hash
	if !from.IsZero() {
		hash = plumbing.NewHash(from.ID)
	} else {
		h, ok, err := p.BranchHead(MasterBranch)
		if err != nil {
			return Transaction{}, err
		}
		if !ok {
			return Transaction{}, fmt.Errorf("objectstore: master has no commits")
		}
		hash = h
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)
	if err := p.repo.Storer.SetReference(ref); err != nil {
		return Transaction{}, fmt.Errorf("objectstore: create branch %s: %w", branch, err)
	}

	commit, err := p.repo.CommitObject(hash)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{ID: hash.String(), When: commit.Committer.When}, nil
}

// ListBranches returns every branch name with a ref.
func (p *Persistence) ListBranches() ([]string, error) {
	refs, err := p.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("objectstore: list branches: %w", err)
	}
	var names []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	return names, err
}

// resolveTransaction maps a commit hash (full or an abbreviated prefix) to
// the commit object it names.
func (p *Persistence) resolveTransaction(id string) (*object.Commit, error) {
	hash := plumbing.NewHash(id)
	if commit, err := p.repo.CommitObject(hash); err == nil {
		return commit, nil
	}

	if len(id) < 4 || len(id) >= 40 {
		return nil, fmt.Errorf("objectstore: transaction not found: %s", id)
	}

	iter, err := p.repo.Log(&git.LogOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("objectstore: iterate commits: %w", err)
	}
	defer iter.Close()

	var found *object.Commit
	sentinel := fmt.Errorf("found")
	err = iter.ForEach(func(c *object.Commit) error {
		if strings.HasPrefix(c.Hash.String(), id) {
			found = c
			return sentinel
		}
		return nil
	})
	if err != nil && err != sentinel {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("objectstore: transaction not found: %s", id)
	}
	return found, nil
}

// TreeAtTransaction resolves a commit_sha/transaction id to the tree it
// points to.
func (p *Persistence) TreeAtTransaction(id string) (plumbing.Hash, error) {
	commit, err := p.resolveTransaction(id)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.TreeHash, nil
}
