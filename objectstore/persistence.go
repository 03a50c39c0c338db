package objectstore

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"

	"github.com/herodb/herodb/core"
)

// MasterBranch is the default branch every store is created with, and the
// only branch the head cache accelerates.
const MasterBranch = "master"

var (
	// ErrNotInitialized is returned when a Persistence is used before Open succeeds.
	ErrNotInitialized = errors.New("objectstore: not initialized")
	// ErrBranchNotFound is returned when a named branch has no ref.
	ErrBranchNotFound = errors.New("objectstore: branch not found")
)

// Persistence wraps a single bare Git repository. It is safe for concurrent
// use; callers hold RLock/Lock across a logical operation (which may touch
// several plumbing calls) rather than per call, mirroring the re-entrancy
// requirement the store layer above it depends on.
type Persistence struct {
	repo *git.Repository
	mu   sync.RWMutex
}

// RLock acquires the read lock for a read-only operation.
func (p *Persistence) RLock() { p.mu.RLock() }

// RUnlock releases the read lock.
func (p *Persistence) RUnlock() { p.mu.RUnlock() }

// Lock acquires the write lock for a mutating operation.
func (p *Persistence) Lock() { p.mu.Lock() }

// Unlock releases the write lock.
func (p *Persistence) Unlock() { p.mu.Unlock() }

// Repo exposes the underlying go-git repository for operations (log
// iteration, gc) that need the full API surface.
func (p *Persistence) Repo() *git.Repository { return p.repo }

// OpenMemory creates an in-memory bare repository. Used by tests and by
// callers who want a scratch store with no filesystem footprint.
func OpenMemory(identity core.Identity) (*Persistence, error) {
	storer := memory.NewStorage()
	repo, err := git.Init(storer)
	if err != nil {
		return nil, fmt.Errorf("objectstore: init memory repo: %w", err)
	}
	p := &Persistence{repo: repo}
	if err := p.initializeMaster(identity); err != nil {
		return nil, err
	}
	return p, nil
}

// Open opens the bare repository rooted at dir, creating and initializing
// it (with an empty initial commit on master) if it does not yet exist.
func Open(dir string, identity core.Identity) (*Persistence, error) {
	root := osfs.New(dir)

	_, statErr := os.Stat(dir)
	exists := statErr == nil

	storer := filesystem.NewStorageWithOptions(
		root,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository
	var err error
	if exists {
		repo, err = git.Open(storer, nil)
		if err != nil {
			return nil, fmt.Errorf("objectstore: open %s: %w", dir, err)
		}
		return &Persistence{repo: repo}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create %s: %w", dir, err)
	}
	repo, err = git.Init(storer)
	if err != nil {
		return nil, fmt.Errorf("objectstore: init bare repo %s: %w", dir, err)
	}

	p := &Persistence{repo: repo}
	if err := p.initializeMaster(identity); err != nil {
		return nil, err
	}
	return p, nil
}

// initializeMaster creates the empty initial commit every store needs so
// that branch_head('master') always resolves, even before the first put.
func (p *Persistence) initializeMaster(identity core.Identity) error {
	emptyTree := &object.Tree{}
	obj := p.repo.Storer.NewEncodedObject()
	if err := emptyTree.Encode(obj); err != nil {
		return fmt.Errorf("objectstore: encode empty tree: %w", err)
	}
	treeHash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("objectstore: store empty tree: %w", err)
	}

	commitHash, err := p.createCommit(treeHash, nil, identity, "Initial version")
	if err != nil {
		return err
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(MasterBranch), commitHash)
	return p.repo.Storer.SetReference(ref)
}
