package objectstore

import (
	"testing"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/stretchr/testify/require"
)

func TestCommitOnBranchForksFromMasterWhenBranchMissing(t *testing.T) {
	p, err := OpenMemory(testIdentity())
	require.NoError(t, err)

	blobHash, err := p.CreateBlob([]byte(`"foo"`))
	require.NoError(t, err)
	masterTree, err := p.BranchTree(MasterBranch)
	require.NoError(t, err)
	newTree, err := p.UpdateTreePath(masterTree, "foo", blobHash)
	require.NoError(t, err)

	txn, err := p.CommitOnBranch("feature", newTree, testIdentity(), "Put foo")
	require.NoError(t, err)
	require.False(t, txn.IsZero())

	commit, err := p.repo.CommitObject(plumbing.NewHash(txn.ID))
	require.NoError(t, err)
	require.Len(t, commit.ParentHashes, 1)

	masterHash, _, err := p.BranchHead(MasterBranch)
	require.NoError(t, err)
	require.Equal(t, masterHash, commit.ParentHashes[0])
}

func TestCommitOnBranchNoopWhenTreeUnchanged(t *testing.T) {
	p, err := OpenMemory(testIdentity())
	require.NoError(t, err)

	masterTree, err := p.BranchTree(MasterBranch)
	require.NoError(t, err)

	txn, err := p.CommitOnBranch(MasterBranch, masterTree, testIdentity(), "Put foo")
	require.NoError(t, err)
	require.True(t, txn.IsZero())
}

func TestCreateBranchDefaultsToMasterTip(t *testing.T) {
	p, err := OpenMemory(testIdentity())
	require.NoError(t, err)

	masterHash, _, err := p.BranchHead(MasterBranch)
	require.NoError(t, err)

	txn, err := p.CreateBranch("feature", Transaction{})
	require.NoError(t, err)
	require.Equal(t, masterHash.String(), txn.ID)
}

func TestResolveTransactionByAbbreviatedPrefix(t *testing.T) {
	p, err := OpenMemory(testIdentity())
	require.NoError(t, err)

	masterHash, _, err := p.BranchHead(MasterBranch)
	require.NoError(t, err)

	commit, err := p.resolveTransaction(masterHash.String()[:8])
	require.NoError(t, err)
	require.Equal(t, masterHash, commit.Hash)
}
