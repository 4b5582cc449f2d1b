package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"studybuddy/portal/auth"
	"studybuddy/portal/schema"
	"studybuddy/portal/storage"
	"studybuddy/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InstructorService struct {
	db          *gorm.DB
	credentials auth.CredentialStore
	storage     storage.Storage
}

func (s *InstructorService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Post("/signup", s.Signup)
		r.Get("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.credentials.AuthMiddleware(auth.RoleInstructor)...)

		r.Get("/info", s.Info)
		r.Post("/change-password", s.ChangePassword)

		r.Get("/courses", s.AssignedCourses)
		r.Get("/open-courses", s.OpenCourses)

		r.Post("/courses/{course_id}/apply", s.Apply)
		r.Get("/applications", s.Applications)
	})

	return r
}

type instructorSignupRequest struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DateOfBirth time.Time `json:"date_of_birth"`
	PhoneNo     string    `json:"phone_no"`
	DomainId    uuid.UUID `json:"domain_id"`
	Password    string    `json:"password"`
}

func (s *InstructorService) Signup(w http.ResponseWriter, r *http.Request) {
	var params instructorSignupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := checkDomainExists(s.db, params.DomainId); err != nil {
		http.Error(w, fmt.Sprintf("error creating instructor: %v", err), GetResponseCode(err))
		return
	}

	instructor := schema.Instructor{
		Name:          params.Name,
		Email:         params.Email,
		DateOfBirth:   params.DateOfBirth,
		PhoneNo:       params.PhoneNo,
		DomainId:      params.DomainId,
		DateOfJoining: time.Now().UTC(),
	}

	instructorId, err := s.credentials.CreateInstructor(instructor, params.Password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrEmailAlreadyInUse) {
			responseCode = http.StatusConflict
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	// Course subdirectories are added later as applications are accepted.
	if err := s.storage.EnsureDir(storage.InstructorPath(instructorId)); err != nil {
		slog.Error("error provisioning instructor directory", "instructor_id", instructorId, "error", err)
	}

	slog.Info("new instructor signed up", "instructor_id", instructorId, "domain_id", params.DomainId)

	utils.WriteJsonResponse(w, signupResponse{UserId: instructorId})
}

func (s *InstructorService) Login(w http.ResponseWriter, r *http.Request) {
	loginHandler(w, r, s.credentials, auth.RoleInstructor)
}

type InstructorInfo struct {
	Id            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	DateOfBirth   time.Time `json:"date_of_birth"`
	PhoneNo       string    `json:"phone_no"`
	DateOfJoining time.Time `json:"date_of_joining"`
	DomainId      uuid.UUID `json:"domain_id"`
	DomainName    string    `json:"domain_name"`
}

func (s *InstructorService) Info(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	instructor, err := schema.GetInstructor(principal.Id, s.db, true)
	if err != nil {
		http.Error(w, fmt.Sprintf("error getting instructor info: %v", err), http.StatusInternalServerError)
		return
	}

	info := InstructorInfo{
		Id:            instructor.Id,
		Name:          instructor.Name,
		Email:         instructor.Email,
		DateOfBirth:   instructor.DateOfBirth,
		PhoneNo:       instructor.PhoneNo,
		DateOfJoining: instructor.DateOfJoining,
		DomainId:      instructor.DomainId,
	}
	if instructor.Domain != nil {
		info.DomainName = instructor.Domain.Name
	}

	utils.WriteJsonResponse(w, info)
}

func (s *InstructorService) ChangePassword(w http.ResponseWriter, r *http.Request) {
	changePasswordHandler(w, r, s.credentials, auth.RoleInstructor)
}

type AssignedCourseInfo struct {
	CourseId    uuid.UUID `json:"course_id"`
	Title       string    `json:"title"`
	CreditHours int       `json:"credit_hours"`
	DomainName  string    `json:"domain_name"`
}

func (s *InstructorService) AssignedCourses(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var courses []AssignedCourseInfo
	result := s.db.Model(&schema.CourseAssignment{}).
		Select("course_assignments.course_id, courses.title, courses.credit_hours, domains.name as domain_name").
		Joins("JOIN courses ON courses.id = course_assignments.course_id").
		Joins("JOIN domains ON domains.id = courses.domain_id").
		Where("course_assignments.instructor_id = ?", principal.Id).
		Scan(&courses)
	if result.Error != nil {
		slog.Error("sql error listing assigned courses", "instructor_id", principal.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing assigned courses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, courses)
}

// OpenCourses lists courses the instructor is neither assigned to nor has a
// pending application for. Courses outside the instructor's domain are open
// too, matching what Apply accepts.
func (s *InstructorService) OpenCourses(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var courses []AssignedCourseInfo
	result := s.db.Model(&schema.Course{}).
		Select("courses.id as course_id, courses.title, courses.credit_hours, domains.name as domain_name").
		Joins("JOIN domains ON domains.id = courses.domain_id").
		Where("NOT EXISTS (SELECT 1 FROM course_assignments WHERE course_assignments.course_id = courses.id AND course_assignments.instructor_id = ?)", principal.Id).
		Where("NOT EXISTS (SELECT 1 FROM applications WHERE applications.course_id = courses.id AND applications.instructor_id = ? AND applications.status = ?)", principal.Id, schema.Pending).
		Scan(&courses)
	if result.Error != nil {
		slog.Error("sql error listing open courses", "instructor_id", principal.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing open courses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, courses)
}

type applyResponse struct {
	ApplicationId uuid.UUID `json:"application_id"`
}

func (s *InstructorService) Apply(w http.ResponseWriter, r *http.Request) {
	courseId, err := utils.URLParamUUID(r, "course_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	applicationId := uuid.New()

	slog.Info("submitting application", "application_id", applicationId, "instructor_id", principal.Id, "course_id", courseId)

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkCourseExists(txn, courseId); err != nil {
			return err
		}

		var existing schema.Application
		result := txn.Limit(1).Find(&existing, "instructor_id = ? and course_id = ? and status in ?", principal.Id, courseId, []string{schema.Pending, schema.Accepted})
		if result.Error != nil {
			slog.Error("sql error checking for existing application", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("instructor %v already has a %v application for course %v", principal.Id, existing.Status, courseId), http.StatusConflict)
		}

		application := schema.Application{
			Id:             applicationId,
			InstructorId:   principal.Id,
			CourseId:       courseId,
			Status:         schema.Pending,
			SubmissionDate: time.Now().UTC(),
		}

		result = txn.Create(&application)
		if result.Error != nil {
			slog.Error("sql error creating application", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error submitting application: %v", err), GetResponseCode(err))
		return
	}

	applicationMetric.Inc()

	slog.Info("application submitted successfully", "application_id", applicationId)

	utils.WriteJsonResponse(w, applyResponse{ApplicationId: applicationId})
}

type ApplicationInfo struct {
	Id             uuid.UUID `json:"id"`
	CourseId       uuid.UUID `json:"course_id"`
	CourseTitle    string    `json:"course_title"`
	Status         string    `json:"status"`
	SubmissionDate time.Time `json:"submission_date"`
}

func (s *InstructorService) Applications(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var applications []ApplicationInfo
	result := s.db.Model(&schema.Application{}).
		Select("applications.id, applications.course_id, courses.title as course_title, applications.status, applications.submission_date").
		Joins("JOIN courses ON courses.id = applications.course_id").
		Where("applications.instructor_id = ?", principal.Id).
		Order("applications.submission_date DESC").
		Scan(&applications)
	if result.Error != nil {
		slog.Error("sql error listing applications", "instructor_id", principal.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing applications: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, applications)
}
