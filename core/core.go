// Package core provides the fundamental types shared across HeroDB: the
// commit identity attached to every write, and the tagged object variant
// returned when a stored path resolves to either a leaf value or a
// sub-tree.
package core

import "github.com/go-git/go-git/v6/plumbing"

// Identity identifies the author/committer of a store mutation. It maps
// directly onto a Git commit's author and committer signature.
type Identity struct {
	Name  string
	Email string
}

// Kind distinguishes the two shapes a stored path can resolve to.
type Kind int

const (
	// KindBlob marks a leaf value.
	KindBlob Kind = iota
	// KindTree marks an intermediate path with children.
	KindTree
)

func (k Kind) String() string {
	if k == KindTree {
		return "tree"
	}
	return "blob"
}

// Object is a tagged reference to a Git object reached while traversing a
// store's hierarchy. Path is the store-relative path that resolved to this
// object; Hash is the underlying blob or tree hash.
type Object struct {
	Path string
	Kind Kind
	Hash plumbing.Hash
}

// IsTree reports whether the object is an intermediate path (a directory).
func (o Object) IsTree() bool { return o.Kind == KindTree }

// IsBlob reports whether the object is a leaf value.
func (o Object) IsBlob() bool { return o.Kind == KindBlob }
