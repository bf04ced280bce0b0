package vcs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pom.xml"), []byte("<project/>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "main"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main", "App.java"), []byte("class App {}"), 0o644))

	hash, err := Init(dir, Signature{Name: "Jane", Email: "jane@example.com"}, "")
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, hash, head.Hash().String())

	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, DefaultMessage, commit.Message)
	assert.Equal(t, "Jane", commit.Author.Name)
	assert.Equal(t, "jane@example.com", commit.Author.Email)

	tree, err := commit.Tree()
	require.NoError(t, err)
	_, err = tree.File("pom.xml")
	assert.NoError(t, err)
	_, err = tree.File("src/main/App.java")
	assert.NoError(t, err)
}

func TestInitDefaultAuthor(t *testing.T) {
	dir := t.TempDir()

	hash, err := Init(dir, Signature{}, "chore: bootstrap")
	require.NoError(t, err)

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	require.NoError(t, err)
	assert.Equal(t, "starter", commit.Author.Name)
	assert.Equal(t, "chore: bootstrap", commit.Message)
}

func TestInitTwice(t *testing.T) {
	dir := t.TempDir()
	_, err := Init(dir, Signature{}, "")
	require.NoError(t, err)

	_, err = Init(dir, Signature{}, "")
	assert.ErrorIs(t, err, ErrAlreadyRepository)
}
