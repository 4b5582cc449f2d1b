package tests

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"studybuddy/portal/storage"

	"github.com/google/uuid"
)

func TestUploadAndListMaterials(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	courseId, instructor := seedAssignedCourse(t, env, admin)

	uploaded, err := instructor.uploadContent("materials", courseId, map[string]string{
		"notes.pdf":  "notes content",
		"slides.pdf": "slides content",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(uploaded) != 2 {
		t.Fatalf("expected 2 uploaded files, got %v", uploaded)
	}
	for _, name := range uploaded {
		if !strings.HasSuffix(name, "notes.pdf") && !strings.HasSuffix(name, "slides.pdf") {
			t.Fatalf("unexpected stored filename %v", name)
		}
	}

	public := env.newClient()
	listed, err := public.listContent("materials", courseId, instructor.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 listed files, got %v", listed)
	}

	var notes string
	for _, name := range listed {
		if strings.HasSuffix(name, "notes.pdf") {
			notes = name
		}
	}
	content, err := public.downloadMaterial(courseId, instructor.userId, notes)
	if err != nil {
		t.Fatal(err)
	}
	if content != "notes content" {
		t.Fatalf("unexpected file content '%v'", content)
	}

	_, err = public.downloadMaterial(courseId, instructor.userId, "missing.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("download of missing file should fail: %v", err)
	}
}

func TestQuizNumbering(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	courseId, instructor := seedAssignedCourse(t, env, admin)

	for i := 1; i <= 3; i++ {
		uploaded, err := instructor.uploadContent("quizzes", courseId, map[string]string{
			"midterm.pdf": "quiz content",
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(uploaded) != 1 || uploaded[0] != fmt.Sprintf("quiz-%d-midterm.pdf", i) {
			t.Fatalf("expected quiz number %d, got %v", i, uploaded)
		}
	}

	// Removing a quiz must not reuse its number.
	quizDir := storage.QuizPath(uuid.MustParse(instructor.userId), uuid.MustParse(courseId))
	if err := env.storage.Delete(filepath.Join(quizDir, "quiz-2-midterm.pdf")); err != nil {
		t.Fatal(err)
	}

	uploaded, err := instructor.uploadContent("quizzes", courseId, map[string]string{
		"final.pdf": "quiz content",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(uploaded) != 1 || uploaded[0] != "quiz-4-final.pdf" {
		t.Fatalf("expected quiz-4-final.pdf, got %v", uploaded)
	}

	public := env.newClient()
	quizzes, err := public.listContent("quizzes", courseId, instructor.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(quizzes) != 3 {
		t.Fatalf("expected 3 quizzes, got %v", quizzes)
	}
}

func TestUnassignedInstructorCannotUpload(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	domainId, courseId, err := env.newDomainAndCourse(admin, "physics")
	if err != nil {
		t.Fatal(err)
	}

	instructor, err := env.newInstructor("ivy", domainId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = instructor.uploadContent("materials", courseId, map[string]string{"notes.pdf": "x"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("unassigned instructor should not upload: %v", err)
	}

	public := env.newClient()
	_, err = public.listContent("materials", courseId, instructor.userId)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("listing content for unassigned instructor should fail: %v", err)
	}
}

func TestListingRepairsMissingDirectory(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	courseId, instructor := seedAssignedCourse(t, env, admin)

	if err := env.storage.Delete(storage.InstructorPath(uuid.MustParse(instructor.userId))); err != nil {
		t.Fatal(err)
	}

	public := env.newClient()
	listed, err := public.listContent("materials", courseId, instructor.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty listing, got %v", listed)
	}

	exists, err := env.courseDirExists(instructor.userId, courseId)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("listing should reprovision the missing directory")
	}
}
