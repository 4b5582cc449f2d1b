package tests

import (
	"fmt"
	"testing"

	"studybuddy/portal/services"
)

func TestCatalogBrowsing(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	physicsId, err := admin.createDomain("physics")
	if err != nil {
		t.Fatal(err)
	}
	historyId, err := admin.createDomain("history")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createCourse("mechanics", 3, physicsId); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createCourse("optics", 4, physicsId); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createCourse("ancient rome", 3, historyId); err != nil {
		t.Fatal(err)
	}

	public := env.newClient()

	var domains []services.DomainInfo
	if err := public.Get("/catalog/domains").Do(&domains); err != nil {
		t.Fatal(err)
	}
	if len(domains) != 2 || domains[0].Name != "history" || domains[1].Name != "physics" {
		t.Fatalf("unexpected domains %v", domains)
	}

	var courses []services.CatalogCourseInfo
	if err := public.Get("/catalog/courses").Do(&courses); err != nil {
		t.Fatal(err)
	}
	if len(courses) != 3 {
		t.Fatalf("expected 3 courses, got %v", courses)
	}

	courses = nil
	if err := public.Get("/catalog/domains/" + physicsId + "/courses").Do(&courses); err != nil {
		t.Fatal(err)
	}
	if len(courses) != 2 || courses[0].Title != "mechanics" || courses[1].Title != "optics" {
		t.Fatalf("unexpected physics courses %v", courses)
	}
	for _, course := range courses {
		if course.DomainName != "physics" {
			t.Fatalf("unexpected domain name on course %v", course)
		}
	}
}

func TestCourseDetailRanksInstructorsByRating(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	domainId, courseId, err := env.newDomainAndCourse(admin, "physics")
	if err != nil {
		t.Fatal(err)
	}

	low, err := env.newInstructor("lena", domainId)
	if err != nil {
		t.Fatal(err)
	}
	high, err := env.newInstructor("hana", domainId)
	if err != nil {
		t.Fatal(err)
	}
	unrated, err := env.newInstructor("uma", domainId)
	if err != nil {
		t.Fatal(err)
	}

	for _, instructor := range []client{low, high, unrated} {
		if err := env.assignInstructor(admin, instructor, courseId); err != nil {
			t.Fatal(err)
		}
	}

	ratings := []struct {
		instructor client
		rating     int
	}{
		{low, 2},
		{high, 5},
	}
	for i, r := range ratings {
		student, err := env.newStudent(fmt.Sprintf("sam%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if err := student.enroll(courseId, r.instructor.userId); err != nil {
			t.Fatal(err)
		}
		if err := student.rate(courseId, r.instructor.userId, r.rating); err != nil {
			t.Fatal(err)
		}
	}

	viewer := env.newClient()
	detail, err := viewer.courseDetail(courseId)
	if err != nil {
		t.Fatal(err)
	}

	if len(detail.Instructors) != 3 {
		t.Fatalf("expected 3 instructors, got %v", detail.Instructors)
	}
	if detail.Instructors[0].Name != "hana" || detail.Instructors[0].AverageRating != 5 {
		t.Fatalf("highest rated instructor should come first, got %v", detail.Instructors)
	}
	if detail.Instructors[2].AverageRating != 0 || detail.Instructors[2].RatingCount != 0 {
		t.Fatalf("unrated instructor should rank last with zero average, got %v", detail.Instructors)
	}
}
