package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	Pending  = "pending"
	Accepted = "accepted"
	Rejected = "rejected"
)

func CheckValidDecision(status string) error {
	if status != Accepted && status != Rejected {
		return fmt.Errorf("invalid status '%v', must be '%v' or '%v'", status, Accepted, Rejected)
	}
	return nil
}

type Student struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name  string `gorm:"size:100;not null"`
	Email string `gorm:"unique;size:254;not null"`

	DateOfBirth time.Time
	PhoneNo     string `gorm:"size:20"`

	Password []byte

	Enrollments []Enrollment `gorm:"foreignKey:StudentId;constraint:OnDelete:CASCADE"`
}

type Instructor struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name  string `gorm:"size:100;not null"`
	Email string `gorm:"unique;size:254;not null"`

	DateOfBirth   time.Time
	PhoneNo       string `gorm:"size:20"`
	DateOfJoining time.Time

	DomainId uuid.UUID `gorm:"type:uuid;not null"`
	Domain   *Domain

	Password []byte

	Applications []Application `gorm:"foreignKey:InstructorId;constraint:OnDelete:CASCADE"`
}

type Admin struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name  string `gorm:"size:100;not null"`
	Email string `gorm:"unique;size:254;not null"`

	Password []byte
}

type Domain struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name    string `gorm:"unique;size:100;not null"`
	Picture string

	Courses []Course `gorm:"foreignKey:DomainId"`
}

type Course struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title       string `gorm:"size:200;not null"`
	CreditHours int    `gorm:"not null"`

	DomainId uuid.UUID `gorm:"type:uuid;not null"`
	Domain   *Domain
}

// Applications are append-only: rows are created pending and decided exactly
// once, they are never deleted.
type Application struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	InstructorId uuid.UUID `gorm:"type:uuid;not null;index"`
	CourseId     uuid.UUID `gorm:"type:uuid;not null;index"`

	Status         string `gorm:"size:100;not null;default:'pending'"`
	SubmissionDate time.Time

	Instructor *Instructor `gorm:"foreignKey:InstructorId"`
	Course     *Course     `gorm:"foreignKey:CourseId"`
}

// CourseAssignment exists iff an application for the pair reached accepted.
type CourseAssignment struct {
	InstructorId uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseId     uuid.UUID `gorm:"type:uuid;primaryKey"`

	Instructor *Instructor `gorm:"foreignKey:InstructorId;constraint:OnDelete:CASCADE"`
	Course     *Course     `gorm:"foreignKey:CourseId;constraint:OnDelete:CASCADE"`
}

type Enrollment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	StudentId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:student_course_enrollment"`
	CourseId     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:student_course_enrollment"`
	InstructorId uuid.UUID `gorm:"type:uuid;not null"`

	EnrollmentDate time.Time

	Student    *Student    `gorm:"foreignKey:StudentId"`
	Course     *Course     `gorm:"foreignKey:CourseId"`
	Instructor *Instructor `gorm:"foreignKey:InstructorId"`
}

type Rating struct {
	InstructorId uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	StudentId    uuid.UUID `gorm:"type:uuid;primaryKey"`

	Rating int `gorm:"not null"`
}

// QuizCounter assigns quiz sequence numbers per (instructor, course) so that
// filenames do not depend on counting files already present in the directory.
type QuizCounter struct {
	InstructorId uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseId     uuid.UUID `gorm:"type:uuid;primaryKey"`

	NextNumber int `gorm:"not null;default:0"`
}

func Tables() []interface{} {
	return []interface{}{
		&Student{}, &Instructor{}, &Admin{},
		&Domain{}, &Course{},
		&Application{}, &CourseAssignment{},
		&Enrollment{}, &Rating{}, &QuizCounter{},
	}
}
