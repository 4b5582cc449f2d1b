package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"studybuddy/portal/auth"
	"studybuddy/portal/schema"
	"studybuddy/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StudentService struct {
	db          *gorm.DB
	credentials auth.CredentialStore
}

func (s *StudentService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Post("/signup", s.Signup)
		r.Get("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.credentials.AuthMiddleware(auth.RoleStudent)...)

		r.Get("/info", s.Info)
		r.Post("/edit-profile", s.EditProfile)
		r.Post("/change-password", s.ChangePassword)

		r.Get("/courses", s.EnrolledCourses)
		r.Get("/courses/{course_id}", s.EnrolledCourseDetail)
		r.Post("/courses/{course_id}/enroll", s.Enroll)
		r.Post("/courses/{course_id}/rate", s.Rate)
	})

	return r
}

type studentSignupRequest struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DateOfBirth time.Time `json:"date_of_birth"`
	PhoneNo     string    `json:"phone_no"`
	Password    string    `json:"password"`
}

type signupResponse struct {
	UserId uuid.UUID `json:"user_id"`
}

func (s *StudentService) Signup(w http.ResponseWriter, r *http.Request) {
	var params studentSignupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	student := schema.Student{
		Name:        params.Name,
		Email:       params.Email,
		DateOfBirth: params.DateOfBirth,
		PhoneNo:     params.PhoneNo,
	}

	studentId, err := s.credentials.CreateStudent(student, params.Password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrEmailAlreadyInUse) {
			responseCode = http.StatusConflict
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	slog.Info("new student signed up", "student_id", studentId)

	utils.WriteJsonResponse(w, signupResponse{UserId: studentId})
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

func loginHandler(w http.ResponseWriter, r *http.Request, credentials auth.CredentialStore, role auth.Role) {
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}

	login, err := credentials.Login(role, email, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrUserNotFoundWithEmail):
			responseCode = http.StatusNotFound
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.Principal.Id, AccessToken: login.AccessToken})
}

func (s *StudentService) Login(w http.ResponseWriter, r *http.Request) {
	loginHandler(w, r, s.credentials, auth.RoleStudent)
}

type StudentInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DateOfBirth time.Time `json:"date_of_birth"`
	PhoneNo     string    `json:"phone_no"`
}

func (s *StudentService) Info(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	student, err := schema.GetStudent(principal.Id, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error getting student info: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, StudentInfo{
		Id:          student.Id,
		Name:        student.Name,
		Email:       student.Email,
		DateOfBirth: student.DateOfBirth,
		PhoneNo:     student.PhoneNo,
	})
}

type editProfileRequest struct {
	Name        *string    `json:"name"`
	Email       *string    `json:"email"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	PhoneNo     *string    `json:"phone_no"`
}

func (s *StudentService) EditProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params editProfileRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	updates := map[string]interface{}{}
	if params.Name != nil {
		updates["name"] = *params.Name
	}
	if params.Email != nil {
		updates["email"] = *params.Email
	}
	if params.DateOfBirth != nil {
		updates["date_of_birth"] = *params.DateOfBirth
	}
	if params.PhoneNo != nil {
		updates["phone_no"] = *params.PhoneNo
	}

	if len(updates) == 0 {
		http.Error(w, "no profile fields provided to update", http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if params.Email != nil {
			var existing schema.Student
			result := txn.Limit(1).Find(&existing, "email = ? and id != ?", *params.Email, principal.Id)
			if result.Error != nil {
				slog.Error("sql error checking for existing email", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			if result.RowsAffected != 0 {
				return CodedError(auth.ErrEmailAlreadyInUse, http.StatusConflict)
			}
		}

		result := txn.Model(&schema.Student{Id: principal.Id}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating student profile", "student_id", principal.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error updating profile: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func changePasswordHandler(w http.ResponseWriter, r *http.Request, credentials auth.CredentialStore, role auth.Role) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params changePasswordRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = credentials.ChangePassword(role, principal.Id, params.CurrentPassword, params.NewPassword)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrInvalidCredentials) {
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("error changing password: %v", err), responseCode)
		return
	}

	utils.WriteSuccess(w)
}

func (s *StudentService) ChangePassword(w http.ResponseWriter, r *http.Request) {
	changePasswordHandler(w, r, s.credentials, auth.RoleStudent)
}

type EnrolledCourseInfo struct {
	CourseId       uuid.UUID `json:"course_id"`
	Title          string    `json:"title"`
	CreditHours    int       `json:"credit_hours"`
	DomainName     string    `json:"domain_name"`
	InstructorId   uuid.UUID `json:"instructor_id"`
	InstructorName string    `json:"instructor_name"`
	EnrollmentDate time.Time `json:"enrollment_date"`
}

func (s *StudentService) EnrolledCourses(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var courses []EnrolledCourseInfo
	result := s.db.Model(&schema.Enrollment{}).
		Select("enrollments.course_id, courses.title, courses.credit_hours, domains.name as domain_name, enrollments.instructor_id, instructors.name as instructor_name, enrollments.enrollment_date").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Joins("JOIN domains ON domains.id = courses.domain_id").
		Joins("JOIN instructors ON instructors.id = enrollments.instructor_id").
		Where("enrollments.student_id = ?", principal.Id).
		Order("enrollments.enrollment_date DESC").
		Scan(&courses)
	if result.Error != nil {
		slog.Error("sql error listing enrolled courses", "student_id", principal.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing enrolled courses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, courses)
}

type EnrolledCourseDetail struct {
	CourseId       uuid.UUID `json:"course_id"`
	Title          string    `json:"title"`
	CreditHours    int       `json:"credit_hours"`
	DomainName     string    `json:"domain_name"`
	InstructorId   uuid.UUID `json:"instructor_id"`
	InstructorName string    `json:"instructor_name"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	AverageRating  float64   `json:"average_rating"`
	RatingCount    int       `json:"rating_count"`
	MyRating       *int      `json:"my_rating,omitempty"`
}

// EnrolledCourseDetail returns the student's enrollment in a course with the
// chosen instructor's average rating and the student's own rating, if any.
func (s *StudentService) EnrolledCourseDetail(w http.ResponseWriter, r *http.Request) {
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

	var detail EnrolledCourseDetail
	result := s.db.Model(&schema.Enrollment{}).
		Select("enrollments.course_id, courses.title, courses.credit_hours, domains.name as domain_name, enrollments.instructor_id, instructors.name as instructor_name, enrollments.enrollment_date, COALESCE(AVG(ratings.rating), 0) as average_rating, COUNT(ratings.rating) as rating_count").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Joins("JOIN domains ON domains.id = courses.domain_id").
		Joins("JOIN instructors ON instructors.id = enrollments.instructor_id").
		Joins("LEFT JOIN ratings ON ratings.instructor_id = enrollments.instructor_id AND ratings.course_id = enrollments.course_id").
		Where("enrollments.student_id = ? AND enrollments.course_id = ?", principal.Id, courseId).
		Group("enrollments.course_id, courses.title, courses.credit_hours, domains.name, enrollments.instructor_id, instructors.name, enrollments.enrollment_date").
		Scan(&detail)
	if result.Error != nil {
		slog.Error("sql error getting enrolled course detail", "student_id", principal.Id, "course_id", courseId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error getting course detail: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, fmt.Sprintf("student %v is not enrolled in course %v", principal.Id, courseId), http.StatusNotFound)
		return
	}

	var myRating schema.Rating
	result = s.db.Limit(1).Find(&myRating, "student_id = ? and course_id = ? and instructor_id = ?", principal.Id, courseId, detail.InstructorId)
	if result.Error != nil {
		slog.Error("sql error getting student rating", "student_id", principal.Id, "course_id", courseId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error getting course detail: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected != 0 {
		detail.MyRating = &myRating.Rating
	}

	utils.WriteJsonResponse(w, detail)
}

type enrollRequest struct {
	InstructorId uuid.UUID `json:"instructor_id"`
}

func (s *StudentService) Enroll(w http.ResponseWriter, r *http.Request) {
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

	var params enrollRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	slog.Info("enrolling student in course", "student_id", principal.Id, "course_id", courseId, "instructor_id", params.InstructorId)

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkCourseExists(txn, courseId); err != nil {
			return err
		}

		if err := checkInstructorAssigned(txn, params.InstructorId, courseId); err != nil {
			return err
		}

		var existing schema.Enrollment
		result := txn.Limit(1).Find(&existing, "student_id = ? and course_id = ?", principal.Id, courseId)
		if result.Error != nil {
			slog.Error("sql error checking for existing enrollment", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("student %v is already enrolled in course %v", principal.Id, courseId), http.StatusConflict)
		}

		enrollment := schema.Enrollment{
			Id:             uuid.New(),
			StudentId:      principal.Id,
			CourseId:       courseId,
			InstructorId:   params.InstructorId,
			EnrollmentDate: time.Now().UTC(),
		}

		result = txn.Create(&enrollment)
		if result.Error != nil {
			slog.Error("sql error creating enrollment", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error enrolling in course: %v", err), GetResponseCode(err))
		return
	}

	enrollmentMetric.Inc()

	slog.Info("student enrolled in course successfully", "student_id", principal.Id, "course_id", courseId)

	utils.WriteSuccess(w)
}

type rateRequest struct {
	InstructorId uuid.UUID `json:"instructor_id"`
	Rating       int       `json:"rating"`
}

func (s *StudentService) Rate(w http.ResponseWriter, r *http.Request) {
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

	var params rateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Rating < 1 || params.Rating > 5 {
		http.Error(w, fmt.Sprintf("invalid rating %v, must be between 1 and 5", params.Rating), http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		// Enrollment in the course is what grants rating rights, the rated
		// instructor does not have to be the one the student enrolled with.
		var enrollment schema.Enrollment
		result := txn.Limit(1).Find(&enrollment, "student_id = ? and course_id = ?", principal.Id, courseId)
		if result.Error != nil {
			slog.Error("sql error checking enrollment before rating", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("student %v is not enrolled in course %v", principal.Id, courseId), http.StatusForbidden)
		}

		rating := schema.Rating{
			InstructorId: params.InstructorId,
			CourseId:     courseId,
			StudentId:    principal.Id,
			Rating:       params.Rating,
		}

		result = txn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instructor_id"}, {Name: "course_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating"}),
		}).Create(&rating)
		if result.Error != nil {
			slog.Error("sql error upserting rating", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error rating course: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("rating recorded", "student_id", principal.Id, "course_id", courseId, "instructor_id", params.InstructorId, "rating", params.Rating)

	utils.WriteSuccess(w)
}
