package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"studybuddy/portal/schema"
	"studybuddy/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogService serves the public browsing endpoints. No login is required.
type CatalogService struct {
	db *gorm.DB
}

func (s *CatalogService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/domains", s.ListDomains)
	r.Get("/domains/{domain_id}/courses", s.DomainCourses)

	r.Get("/courses", s.ListCourses)
	r.Get("/courses/{course_id}", s.CourseDetail)

	return r
}

func (s *CatalogService) ListDomains(w http.ResponseWriter, r *http.Request) {
	var domains []schema.Domain
	result := s.db.Order("name").Find(&domains)
	if result.Error != nil {
		slog.Error("sql error listing domains", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing domains: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]DomainInfo, 0, len(domains))
	for _, domain := range domains {
		infos = append(infos, DomainInfo{Id: domain.Id, Name: domain.Name, Picture: domain.Picture})
	}
	utils.WriteJsonResponse(w, infos)
}

type CatalogCourseInfo struct {
	Id          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	CreditHours int       `json:"credit_hours"`
	DomainId    uuid.UUID `json:"domain_id"`
	DomainName  string    `json:"domain_name"`
}

func (s *CatalogService) listCourses(w http.ResponseWriter, query *gorm.DB) {
	var courses []CatalogCourseInfo
	result := query.
		Select("courses.id, courses.title, courses.credit_hours, courses.domain_id, domains.name as domain_name").
		Joins("JOIN domains ON domains.id = courses.domain_id").
		Order("courses.title").
		Scan(&courses)
	if result.Error != nil {
		slog.Error("sql error listing courses", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing courses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, courses)
}

func (s *CatalogService) ListCourses(w http.ResponseWriter, r *http.Request) {
	s.listCourses(w, s.db.Model(&schema.Course{}))
}

func (s *CatalogService) DomainCourses(w http.ResponseWriter, r *http.Request) {
	domainId, err := utils.URLParamUUID(r, "domain_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkDomainExists(s.db, domainId); err != nil {
		http.Error(w, fmt.Sprintf("error listing domain courses: %v", err), GetResponseCode(err))
		return
	}

	s.listCourses(w, s.db.Model(&schema.Course{}).Where("courses.domain_id = ?", domainId))
}

type CourseInstructorInfo struct {
	InstructorId  uuid.UUID `json:"instructor_id"`
	Name          string    `json:"name"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
}

type CourseDetail struct {
	Id          uuid.UUID              `json:"id"`
	Title       string                 `json:"title"`
	CreditHours int                    `json:"credit_hours"`
	DomainId    uuid.UUID              `json:"domain_id"`
	DomainName  string                 `json:"domain_name"`
	Instructors []CourseInstructorInfo `json:"instructors"`
}

// CourseDetail returns the course along with its assigned instructors,
// highest rated first.
func (s *CatalogService) CourseDetail(w http.ResponseWriter, r *http.Request) {
	courseId, err := utils.URLParamUUID(r, "course_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	course, err := schema.GetCourse(courseId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrCourseNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting course: %v", err), http.StatusInternalServerError)
		return
	}

	var instructors []CourseInstructorInfo
	result := s.db.Model(&schema.CourseAssignment{}).
		Select("course_assignments.instructor_id, instructors.name, COALESCE(AVG(ratings.rating), 0) as average_rating, COUNT(ratings.rating) as rating_count").
		Joins("JOIN instructors ON instructors.id = course_assignments.instructor_id").
		Joins("LEFT JOIN ratings ON ratings.instructor_id = course_assignments.instructor_id AND ratings.course_id = course_assignments.course_id").
		Where("course_assignments.course_id = ?", courseId).
		Group("course_assignments.instructor_id, instructors.name").
		Order("average_rating DESC").
		Scan(&instructors)
	if result.Error != nil {
		slog.Error("sql error listing course instructors", "course_id", courseId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing course instructors: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	detail := CourseDetail{
		Id:          course.Id,
		Title:       course.Title,
		CreditHours: course.CreditHours,
		DomainId:    course.DomainId,
		Instructors: instructors,
	}
	if course.Domain != nil {
		detail.DomainName = course.Domain.Name
	}

	utils.WriteJsonResponse(w, detail)
}
