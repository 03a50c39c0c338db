package objectstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func putLeaf(t *testing.T, p *Persistence, branch, path, value string) Transaction {
	t.Helper()
	blobHash, err := p.CreateBlob([]byte(value))
	require.NoError(t, err)

	treeHash, err := p.resolveBranchTreeOrFork(branch)
	require.NoError(t, err)
	newTree, err := p.UpdateTreePath(treeHash, path, blobHash)
	require.NoError(t, err)

	txn, err := p.CommitOnBranch(branch, newTree, testIdentity(), "Put "+path)
	require.NoError(t, err)
	return txn
}

func TestMergeSourceWinsOnAdd(t *testing.T) {
	p, err := OpenMemory(testIdentity())
	require.NoError(t, err)

	putLeaf(t, p, "feature", "foo", `"foo"`)

	result, err := p.Merge("feature", MasterBranch, testIdentity(), "Merge feature to master")
	require.NoError(t, err)
	require.False(t, result.Transaction.IsZero())
	require.Contains(t, result.Changed, "foo")

	masterTree, err := p.BranchTree(MasterBranch)
	require.NoError(t, err)
	obj, found, err := p.Lookup(masterTree, "foo")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, obj.IsBlob())
}

func TestMergeAppliesDeleteFromSource(t *testing.T) {
	p, err := OpenMemory(testIdentity())
	require.NoError(t, err)

	putLeaf(t, p, MasterBranch, "foo", `"foo"`)
	_, err = p.CreateBranch("feature", Transaction{})
	require.NoError(t, err)

	featureTree, err := p.BranchTree("feature")
	require.NoError(t, err)
	newTree, err := p.DeleteTreePath(featureTree, "foo")
	require.NoError(t, err)
	_, err = p.CommitOnBranch("feature", newTree, testIdentity(), "Delete foo")
	require.NoError(t, err)

	_, err = p.Merge("feature", MasterBranch, testIdentity(), "Merge feature to master")
	require.NoError(t, err)

	masterTree, err := p.BranchTree(MasterBranch)
	require.NoError(t, err)
	_, found, err := p.Lookup(masterTree, "foo")
	require.NoError(t, err)
	require.False(t, found)
}
