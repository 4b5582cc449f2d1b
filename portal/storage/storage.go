package storage

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]string, error)

	Exists(path string) (bool, error)

	// EnsureDir creates the directory and any missing parents. It succeeds if
	// the directory already exists.
	EnsureDir(path string) error

	Size(path string) (int64, error)

	Usage() (UsageStats, error)

	Location() string
}

func InstructorPath(instructorId uuid.UUID) string {
	return filepath.Join("instructors", instructorId.String())
}

func CoursePath(instructorId, courseId uuid.UUID) string {
	return filepath.Join("instructors", instructorId.String(), courseId.String())
}

func QuizPath(instructorId, courseId uuid.UUID) string {
	return filepath.Join(CoursePath(instructorId, courseId), "quizzes")
}

func DomainPicturePath(domainId uuid.UUID, filename string) string {
	return filepath.Join("domains", domainId.String(), filename)
}

// EnsureCourseDir provisions the content directories for an instructor that
// has been assigned a course. It is safe to call repeatedly.
func EnsureCourseDir(store Storage, instructorId, courseId uuid.UUID) (string, error) {
	quizDir := QuizPath(instructorId, courseId)
	if err := store.EnsureDir(quizDir); err != nil {
		return "", fmt.Errorf("error provisioning course directory for instructor %v course %v: %w", instructorId, courseId, err)
	}
	return CoursePath(instructorId, courseId), nil
}
