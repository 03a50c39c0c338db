package objectstore

import (
	"fmt"

	"github.com/go-git/go-git/v6"
)

// Gc compacts the repository's loose objects. go-git has no direct
// equivalent of `git gc --aggressive` (which shells out to the system git
// binary in the original implementation); this prunes unreachable loose
// objects via the repository's own Prune, which is the bounded, pure-Go
// subset of compaction go-git actually exposes.
func (p *Persistence) Gc() error {
	p.Lock()
	defer p.Unlock()

	if err := p.repo.Prune(git.PruneOptions{}); err != nil {
		return fmt.Errorf("objectstore: gc: %w", err)
	}
	return nil
}
