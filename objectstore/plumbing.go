package objectstore

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/herodb/herodb/core"
)

// CreateBlob stores data as a new blob object and returns its hash.
func (p *Persistence) CreateBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: blob writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("objectstore: write blob: %w", err)
	}
	w.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: store blob: %w", err)
	}
	return hash, nil
}

// ReadBlob returns the contents of the blob at hash.
func (p *Persistence) ReadBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(p.repo.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("objectstore: get blob: %w", err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("objectstore: blob reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read blob: %w", err)
	}
	return data, nil
}

// Tree fetches the tree object at hash. ZeroHash resolves to an empty tree.
func (p *Persistence) Tree(hash plumbing.Hash) (*object.Tree, error) {
	if hash == plumbing.ZeroHash {
		return &object.Tree{}, nil
	}
	t, err := object.GetTree(p.repo.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("objectstore: get tree: %w", err)
	}
	return t, nil
}

// TreeEntries returns the direct entries of the tree at hash, keyed by name.
func (p *Persistence) TreeEntries(hash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if hash == plumbing.ZeroHash {
		return entries, nil
	}
	tree, err := p.Tree(hash)
	if err != nil {
		return nil, err
	}
	for _, e := range tree.Entries {
		entries[e.Name] = e
	}
	return entries, nil
}

// BuildTree encodes a tree object from entries, sorted in Git's directory
// order (directories compare as if they carried a trailing slash).
func (p *Persistence) BuildTree(entries []object.TreeEntry) (plumbing.Hash, error) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Name, entries[j].Name
		if entries[i].Mode == filemode.Dir {
			a += "/"
		}
		if entries[j].Mode == filemode.Dir {
			b += "/"
		}
		return a < b
	})

	tree := &object.Tree{Entries: entries}
	obj := p.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: encode tree: %w", err)
	}
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: store tree: %w", err)
	}
	return hash, nil
}

func (p *Persistence) entriesSlice(entries map[string]object.TreeEntry) []object.TreeEntry {
	out := make([]object.TreeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out
}

// UpdateTreePath sets path to a blob leaf within rootTreeHash, replacing
// whatever was previously at that path (including an entire sub-tree, the
// documented "replace" collision policy — writing a value over an existing
// sub-tree path discards the sub-tree with no error). Returns the new root
// tree hash.
func (p *Persistence) UpdateTreePath(rootTreeHash plumbing.Hash, path string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	parts := core.SplitPath(path)
	if len(parts) == 0 {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: empty path")
	}
	return p.updatePathRecursive(rootTreeHash, parts, blobHash)
}

func (p *Persistence) updatePathRecursive(treeHash plumbing.Hash, parts []string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	entries, err := p.TreeEntries(treeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	name := parts[0]
	if len(parts) == 1 {
		entries[name] = object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: blobHash}
	} else {
		var subTreeHash plumbing.Hash
		if existing, ok := entries[name]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		}
		newSubTreeHash, err := p.updatePathRecursive(subTreeHash, parts[1:], blobHash)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: newSubTreeHash}
	}

	return p.BuildTree(p.entriesSlice(entries))
}

// DeleteTreePath removes path from rootTreeHash, pruning now-empty
// intermediate directories on the way back up. Returns the new root tree
// hash, which is plumbing.ZeroHash if the tree becomes empty.
func (p *Persistence) DeleteTreePath(rootTreeHash plumbing.Hash, path string) (plumbing.Hash, error) {
	parts := core.SplitPath(path)
	if len(parts) == 0 {
		return plumbing.ZeroHash, fmt.Errorf("objectstore: empty path")
	}
	return p.deletePathRecursive(rootTreeHash, parts)
}

func (p *Persistence) deletePathRecursive(treeHash plumbing.Hash, parts []string) (plumbing.Hash, error) {
	entries, err := p.TreeEntries(treeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	name := parts[0]
	if len(parts) == 1 {
		delete(entries, name)
	} else {
		existing, ok := entries[name]
		if !ok || existing.Mode != filemode.Dir {
			return treeHash, nil
		}
		newSubTreeHash, err := p.deletePathRecursive(existing.Hash, parts[1:])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if newSubTreeHash == plumbing.ZeroHash {
			delete(entries, name)
		} else {
			entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: newSubTreeHash}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}
	return p.BuildTree(p.entriesSlice(entries))
}

// TreeChange is a single leaf mutation to apply as part of a batch.
type TreeChange struct {
	Path     string
	BlobHash plumbing.Hash
	IsDelete bool
}

// BatchUpdateTree applies several leaf changes to a tree in one pass,
// grouping changes by their top-level directory so each subtree is
// rebuilt only once regardless of how many leaves under it changed.
func (p *Persistence) BatchUpdateTree(rootTreeHash plumbing.Hash, changes []TreeChange) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return rootTreeHash, nil
	}

	grouped := make(map[string][]TreeChange)
	var leaf []TreeChange

	for _, c := range changes {
		parts := core.SplitPath(c.Path)
		if len(parts) == 1 {
			leaf = append(leaf, c)
			continue
		}
		dir := parts[0]
		grouped[dir] = append(grouped[dir], TreeChange{
			Path:     strings.Join(parts[1:], "/"),
			BlobHash: c.BlobHash,
			IsDelete: c.IsDelete,
		})
	}

	entries, err := p.TreeEntries(rootTreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, c := range leaf {
		if c.IsDelete {
			delete(entries, c.Path)
		} else {
			entries[c.Path] = object.TreeEntry{Name: c.Path, Mode: filemode.Regular, Hash: c.BlobHash}
		}
	}

	for dir, subChanges := range grouped {
		var subTreeHash plumbing.Hash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		}
		newSubTreeHash, err := p.BatchUpdateTree(subTreeHash, subChanges)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if newSubTreeHash == plumbing.ZeroHash {
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{Name: dir, Mode: filemode.Dir, Hash: newSubTreeHash}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}
	return p.BuildTree(p.entriesSlice(entries))
}

// Lookup walks rootTreeHash along path and returns the object found there,
// if any.
func (p *Persistence) Lookup(rootTreeHash plumbing.Hash, path string) (core.Object, bool, error) {
	parts := core.SplitPath(path)
	if len(parts) == 0 {
		return core.Object{Path: "", Kind: core.KindTree, Hash: rootTreeHash}, true, nil
	}

	treeHash := rootTreeHash
	for i, part := range parts {
		entries, err := p.TreeEntries(treeHash)
		if err != nil {
			return core.Object{}, false, err
		}
		entry, ok := entries[part]
		if !ok {
			return core.Object{}, false, nil
		}
		if i == len(parts)-1 {
			kind := core.KindBlob
			if entry.Mode == filemode.Dir {
				kind = core.KindTree
			}
			return core.Object{Path: path, Kind: kind, Hash: entry.Hash}, true, nil
		}
		if entry.Mode != filemode.Dir {
			return core.Object{}, false, nil
		}
		treeHash = entry.Hash
	}
	return core.Object{}, false, nil
}
