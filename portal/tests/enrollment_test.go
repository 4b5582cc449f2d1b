package tests

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

// seedAssignedCourse sets up a domain, course, and assigned instructor, and
// returns the course id and instructor client.
func seedAssignedCourse(t *testing.T, env *testEnv, admin client) (string, client) {
	domainId, courseId, err := env.newDomainAndCourse(admin, "physics")
	if err != nil {
		t.Fatal(err)
	}

	instructor, err := env.newInstructor("ivy", domainId)
	if err != nil {
		t.Fatal(err)
	}

	if err := env.assignInstructor(admin, instructor, courseId); err != nil {
		t.Fatal(err)
	}

	return courseId, instructor
}

func TestEnroll(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	courseId, instructor := seedAssignedCourse(t, env, admin)

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}

	if err := student.enroll(courseId, instructor.userId); err != nil {
		t.Fatal(err)
	}

	courses, err := student.enrolledCourses()
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 1 || courses[0].CourseId.String() != courseId || courses[0].InstructorName != "ivy" {
		t.Fatalf("unexpected enrolled courses %v", courses)
	}

	if err := student.enroll(courseId, instructor.userId); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate enrollment should fail: %v", err)
	}

	if err := student.enroll(uuid.NewString(), instructor.userId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("enrollment in unknown course should fail: %v", err)
	}

	if err := student.enroll(courseId, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("enrollment with unassigned instructor should fail: %v", err)
	}
}

func TestRating(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	courseId, instructor := seedAssignedCourse(t, env, admin)

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}

	if err := student.rate(courseId, instructor.userId, 5); !errors.Is(err, ErrForbidden) {
		t.Fatalf("rating without enrollment should fail: %v", err)
	}

	if err := student.enroll(courseId, instructor.userId); err != nil {
		t.Fatal(err)
	}

	for _, rating := range []int{0, 6, -1} {
		if err := student.rate(courseId, instructor.userId, rating); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("rating %d should be rejected: %v", rating, err)
		}
	}

	if err := student.rate(courseId, instructor.userId, 3); err != nil {
		t.Fatal(err)
	}

	detail, err := student.courseDetail(courseId)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Instructors) != 1 || detail.Instructors[0].AverageRating != 3 || detail.Instructors[0].RatingCount != 1 {
		t.Fatalf("unexpected course detail %v", detail)
	}

	// Rating again replaces the previous rating.
	if err := student.rate(courseId, instructor.userId, 5); err != nil {
		t.Fatal(err)
	}

	detail, err = student.courseDetail(courseId)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Instructors) != 1 || detail.Instructors[0].AverageRating != 5 || detail.Instructors[0].RatingCount != 1 {
		t.Fatalf("unexpected course detail after re-rating %v", detail)
	}
}

func TestRatingOtherInstructorsOfEnrolledCourse(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	domainId, courseId, err := env.newDomainAndCourse(admin, "physics")
	if err != nil {
		t.Fatal(err)
	}

	chosen, err := env.newInstructor("ivy", domainId)
	if err != nil {
		t.Fatal(err)
	}
	other, err := env.newInstructor("nora", domainId)
	if err != nil {
		t.Fatal(err)
	}
	for _, instructor := range []client{chosen, other} {
		if err := env.assignInstructor(admin, instructor, courseId); err != nil {
			t.Fatal(err)
		}
	}

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}
	if err := student.enroll(courseId, chosen.userId); err != nil {
		t.Fatal(err)
	}

	// Any instructor of the course can be rated, not only the one the
	// student enrolled with.
	if err := student.rate(courseId, other.userId, 4); err != nil {
		t.Fatal(err)
	}

	detail, err := student.courseDetail(courseId)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Instructors) != 2 {
		t.Fatalf("expected 2 instructors, got %v", detail.Instructors)
	}
	if detail.Instructors[0].Name != "nora" || detail.Instructors[0].AverageRating != 4 || detail.Instructors[0].RatingCount != 1 {
		t.Fatalf("rating of non-chosen instructor not recorded: %v", detail.Instructors)
	}
}

func TestEnrolledCourseDetail(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	courseId, instructor := seedAssignedCourse(t, env, admin)

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := student.myCourseDetail(courseId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("detail of a course the student is not enrolled in should fail: %v", err)
	}

	if err := student.enroll(courseId, instructor.userId); err != nil {
		t.Fatal(err)
	}

	detail, err := student.myCourseDetail(courseId)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Title != "intro to physics" || detail.InstructorName != "ivy" || detail.DomainName != "physics" {
		t.Fatalf("unexpected course detail %v", detail)
	}
	if detail.AverageRating != 0 || detail.RatingCount != 0 || detail.MyRating != nil {
		t.Fatalf("detail should have no ratings yet: %v", detail)
	}

	if err := student.rate(courseId, instructor.userId, 4); err != nil {
		t.Fatal(err)
	}

	detail, err = student.myCourseDetail(courseId)
	if err != nil {
		t.Fatal(err)
	}
	if detail.AverageRating != 4 || detail.RatingCount != 1 {
		t.Fatalf("detail should reflect the new rating: %v", detail)
	}
	if detail.MyRating == nil || *detail.MyRating != 4 {
		t.Fatalf("detail should include the student's own rating: %v", detail)
	}
}
