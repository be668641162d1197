package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Issues.RootDir = t.TempDir()
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestCreate_NumbersIncrementAndSanitize(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Create("My Issue!", "body")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "My-Issue!", first.Name)

	second, err := s.Create("another", "body2")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Number)
}

func TestCreate_DerivesNameFromHeading(t *testing.T) {
	s := newTestStore(t)
	issue, err := s.Create("", "# Fix the thing\nmore text")
	require.NoError(t, err)
	assert.Equal(t, "Fix-the-thing", issue.Name)
}

func TestCreate_RejectsPathTraversal(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create("../../etc/passwd", "x")
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(42)
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMarkComplete_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	issue, err := s.Create("task", "body")
	require.NoError(t, err)

	require.NoError(t, s.MarkComplete(issue.Number))
	require.NoError(t, s.MarkComplete(issue.Number))

	got, err := s.Get(issue.Number)
	require.NoError(t, err)
	assert.True(t, got.Completed)
}

func TestAllComplete(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.AllComplete()
	require.NoError(t, err)
	assert.True(t, ok, "empty store has nothing pending")

	issue, err := s.Create("task", "body")
	require.NoError(t, err)

	ok, err = s.AllComplete()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkComplete(issue.Number))
	ok, err = s.AllComplete()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdate_AtomicWrite(t *testing.T) {
	s := newTestStore(t)
	issue, err := s.Create("task", "original")
	require.NoError(t, err)

	require.NoError(t, s.Update(issue.Number, "revised"))

	got, err := s.Get(issue.Number)
	require.NoError(t, err)
	assert.Equal(t, "revised", got.Content)
}

func TestGetBatch_AbortsWithoutPartialReads(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Create("a", "a-body")
	require.NoError(t, err)

	_, err = s.GetBatch([]int{a.Number, 999})
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMarkCompleteBatch_AllOrNothing(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Create("a", "body")
	require.NoError(t, err)

	err = s.MarkCompleteBatch([]int{a.Number, 999})
	require.Error(t, err)

	got, err := s.Get(a.Number)
	require.NoError(t, err)
	assert.False(t, got.Completed, "pre-validation should have aborted before any write")
}

func TestList_SortedAcrossBothDirectories(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create("first", "1")
	require.NoError(t, err)
	second, err := s.Create("second", "2")
	require.NoError(t, err)
	require.NoError(t, s.MarkComplete(second.Number))
	_, err = s.Create("third", "3")
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].Number, list[1].Number, list[2].Number})
}
