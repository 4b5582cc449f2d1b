package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrStudentNotFound     = errors.New("student not found")
	ErrInstructorNotFound  = errors.New("instructor not found")
	ErrAdminNotFound       = errors.New("admin not found")
	ErrDomainNotFound      = errors.New("domain not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrDbAccessFailed      = errors.New("db access failed")
)

func GetStudent(studentId uuid.UUID, db *gorm.DB) (Student, error) {
	var student Student

	result := db.First(&student, "id = ?", studentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return student, ErrStudentNotFound
		}
		slog.Error("sql error in get student", "student_id", studentId, "error", result.Error)
		return student, ErrDbAccessFailed
	}

	return student, nil
}

func GetInstructor(instructorId uuid.UUID, db *gorm.DB, loadDomain bool) (Instructor, error) {
	var instructor Instructor

	var result *gorm.DB = db
	if loadDomain {
		result = result.Preload("Domain")
	}
	result = result.First(&instructor, "id = ?", instructorId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return instructor, ErrInstructorNotFound
		}
		slog.Error("sql error in get instructor", "instructor_id", instructorId, "error", result.Error)
		return instructor, ErrDbAccessFailed
	}

	return instructor, nil
}

func GetAdmin(adminId uuid.UUID, db *gorm.DB) (Admin, error) {
	var admin Admin

	result := db.First(&admin, "id = ?", adminId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return admin, ErrAdminNotFound
		}
		slog.Error("sql error in get admin", "admin_id", adminId, "error", result.Error)
		return admin, ErrDbAccessFailed
	}

	return admin, nil
}

func GetDomain(domainId uuid.UUID, db *gorm.DB) (Domain, error) {
	var domain Domain

	result := db.First(&domain, "id = ?", domainId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain, ErrDomainNotFound
		}
		slog.Error("sql error in get domain", "domain_id", domainId, "error", result.Error)
		return domain, ErrDbAccessFailed
	}

	return domain, nil
}

func GetCourse(courseId uuid.UUID, db *gorm.DB, loadDomain bool) (Course, error) {
	var course Course

	var result *gorm.DB = db
	if loadDomain {
		result = result.Preload("Domain")
	}
	result = result.First(&course, "id = ?", courseId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return course, ErrCourseNotFound
		}
		slog.Error("sql error in get course", "course_id", courseId, "error", result.Error)
		return course, ErrDbAccessFailed
	}

	return course, nil
}

func GetApplication(applicationId uuid.UUID, db *gorm.DB, loadRefs bool) (Application, error) {
	var application Application

	var result *gorm.DB = db
	if loadRefs {
		result = result.Preload("Instructor").Preload("Course")
	}
	result = result.First(&application, "id = ?", applicationId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return application, ErrApplicationNotFound
		}
		slog.Error("sql error in get application", "application_id", applicationId, "error", result.Error)
		return application, ErrDbAccessFailed
	}

	return application, nil
}
