package storage_test

import (
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"studybuddy/portal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteDelete(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	err := store.Write("a/b/c.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	file, err := store.Read("a/b/c.txt")
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	exists, err := store.Exists("a/b/c.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete("a/b/c.txt"))

	exists, err = store.Exists("a/b/c.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureDirIdempotent(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	instructorId, courseId := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := storage.EnsureCourseDir(store, instructorId, courseId)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	exists, err := store.Exists(storage.QuizPath(instructorId, courseId))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListDirectory(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	instructorId, courseId := uuid.New(), uuid.New()
	dir, err := storage.EnsureCourseDir(store, instructorId, courseId)
	require.NoError(t, err)

	require.NoError(t, store.Write(filepath.Join(dir, "notes.pdf"), strings.NewReader("x")))
	require.NoError(t, store.Write(filepath.Join(dir, "slides.pdf"), strings.NewReader("y")))

	entries, err := store.List(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes.pdf", "slides.pdf", "quizzes"}, entries)
}

func TestUsage(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	usage, err := store.Usage()
	require.NoError(t, err)
	assert.Greater(t, usage.TotalBytes, uint64(0))
	assert.LessOrEqual(t, usage.FreeBytes, usage.TotalBytes)
}
