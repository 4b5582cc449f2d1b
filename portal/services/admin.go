package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"studybuddy/portal/auth"
	"studybuddy/portal/schema"
	"studybuddy/portal/storage"
	"studybuddy/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdminService struct {
	db          *gorm.DB
	credentials auth.CredentialStore
	storage     storage.Storage
}

func (s *AdminService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/login", s.Login)

	r.Group(func(r chi.Router) {
		r.Use(s.credentials.AuthMiddleware(auth.RoleAdmin)...)

		r.Get("/info", s.Info)
		r.Post("/create", s.CreateAdmin)
		r.Post("/change-password", s.ChangePassword)

		r.Get("/domains", s.ListDomains)
		r.With(checkSufficientStorage(s.storage)).Post("/domains", s.CreateDomain)

		r.Post("/courses", s.CreateCourse)

		r.Get("/applications", s.PendingApplications)
		r.Get("/applications/{application_id}", s.ApplicationDetail)
		r.Post("/applications/{application_id}", s.UpdateApplication)
	})

	return r
}

func (s *AdminService) Login(w http.ResponseWriter, r *http.Request) {
	loginHandler(w, r, s.credentials, auth.RoleAdmin)
}

type AdminInfo struct {
	Id    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (s *AdminService) Info(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, AdminInfo{Id: principal.Id, Name: principal.Name, Email: principal.Email})
}

type createAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *AdminService) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var params createAdminRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	admin := schema.Admin{Name: params.Name, Email: params.Email}

	adminId, err := s.credentials.CreateAdmin(admin, params.Password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrEmailAlreadyInUse) {
			responseCode = http.StatusConflict
		}
		http.Error(w, fmt.Sprintf("error creating admin: %v", err), responseCode)
		return
	}

	utils.WriteJsonResponse(w, signupResponse{UserId: adminId})
}

func (s *AdminService) ChangePassword(w http.ResponseWriter, r *http.Request) {
	changePasswordHandler(w, r, s.credentials, auth.RoleAdmin)
}

type DomainInfo struct {
	Id      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Picture string    `json:"picture"`
}

func (s *AdminService) ListDomains(w http.ResponseWriter, r *http.Request) {
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

// CreateDomain accepts a multipart request with a 'name' field and an
// optional 'picture' file.
func (s *AdminService) CreateDomain(w http.ResponseWriter, r *http.Request) {
	boundary, err := getMultipartBoundary(r)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	domainId := uuid.New()

	var name, picture string

	reader := multipart.NewReader(r.Body, boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("error parsing multipart request: %v", err), http.StatusBadRequest)
			return
		}
		defer part.Close()

		switch part.FormName() {
		case "name":
			data, err := io.ReadAll(part)
			if err != nil {
				http.Error(w, fmt.Sprintf("error reading 'name' field: %v", err), http.StatusBadRequest)
				return
			}
			name = string(data)
		case "picture":
			if part.FileName() == "" {
				http.Error(w, "invalid filename for domain picture: filename cannot be empty", http.StatusUnprocessableEntity)
				return
			}
			picturePath := storage.DomainPicturePath(domainId, part.FileName())
			if err := s.storage.Write(picturePath, part); err != nil {
				slog.Error("error saving domain picture", "error", err)
				http.Error(w, "error saving domain picture", http.StatusInternalServerError)
				return
			}
			picture = picturePath
		}
	}

	if name == "" {
		http.Error(w, "domain name cannot be empty", http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Domain
		result := txn.Limit(1).Find(&existing, "name = ?", name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate domain", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("a domain with name %v already exists", name), http.StatusConflict)
		}

		domain := schema.Domain{Id: domainId, Name: name, Picture: picture}
		result = txn.Create(&domain)
		if result.Error != nil {
			slog.Error("sql error creating domain", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating domain: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("domain created", "domain_id", domainId, "name", name)

	utils.WriteJsonResponse(w, DomainInfo{Id: domainId, Name: name, Picture: picture})
}

type createCourseRequest struct {
	Title       string    `json:"title"`
	CreditHours int       `json:"credit_hours"`
	DomainId    uuid.UUID `json:"domain_id"`
}

type createCourseResponse struct {
	CourseId uuid.UUID `json:"course_id"`
}

func (s *AdminService) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var params createCourseRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "course title cannot be empty", http.StatusUnprocessableEntity)
		return
	}
	if params.CreditHours < 1 {
		http.Error(w, fmt.Sprintf("invalid credit hours %v, must be at least 1", params.CreditHours), http.StatusUnprocessableEntity)
		return
	}

	courseId := uuid.New()

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkDomainExists(txn, params.DomainId); err != nil {
			return err
		}

		course := schema.Course{
			Id:          courseId,
			Title:       params.Title,
			CreditHours: params.CreditHours,
			DomainId:    params.DomainId,
		}

		result := txn.Create(&course)
		if result.Error != nil {
			slog.Error("sql error creating course", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating course: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("course created", "course_id", courseId, "domain_id", params.DomainId)

	utils.WriteJsonResponse(w, createCourseResponse{CourseId: courseId})
}

type PendingApplicationInfo struct {
	Id             uuid.UUID `json:"id"`
	InstructorId   uuid.UUID `json:"instructor_id"`
	InstructorName string    `json:"instructor_name"`
	CourseId       uuid.UUID `json:"course_id"`
	CourseTitle    string    `json:"course_title"`
	SubmissionDate time.Time `json:"submission_date"`
}

func (s *AdminService) PendingApplications(w http.ResponseWriter, r *http.Request) {
	var applications []PendingApplicationInfo
	result := s.db.Model(&schema.Application{}).
		Select("applications.id, applications.instructor_id, instructors.name as instructor_name, applications.course_id, courses.title as course_title, applications.submission_date").
		Joins("JOIN instructors ON instructors.id = applications.instructor_id").
		Joins("JOIN courses ON courses.id = applications.course_id").
		Where("applications.status = ?", schema.Pending).
		Order("applications.submission_date DESC").
		Scan(&applications)
	if result.Error != nil {
		slog.Error("sql error listing pending applications", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing pending applications: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, applications)
}

type ApplicationDetail struct {
	Id              uuid.UUID `json:"id"`
	Status          string    `json:"status"`
	SubmissionDate  time.Time `json:"submission_date"`
	InstructorId    uuid.UUID `json:"instructor_id"`
	InstructorName  string    `json:"instructor_name"`
	InstructorEmail string    `json:"instructor_email"`
	CourseId        uuid.UUID `json:"course_id"`
	CourseTitle     string    `json:"course_title"`
}

func (s *AdminService) ApplicationDetail(w http.ResponseWriter, r *http.Request) {
	applicationId, err := utils.URLParamUUID(r, "application_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	application, err := schema.GetApplication(applicationId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrApplicationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting application: %v", err), http.StatusInternalServerError)
		return
	}

	detail := ApplicationDetail{
		Id:             application.Id,
		Status:         application.Status,
		SubmissionDate: application.SubmissionDate,
		InstructorId:   application.InstructorId,
		CourseId:       application.CourseId,
	}
	if application.Instructor != nil {
		detail.InstructorName = application.Instructor.Name
		detail.InstructorEmail = application.Instructor.Email
	}
	if application.Course != nil {
		detail.CourseTitle = application.Course.Title
	}

	utils.WriteJsonResponse(w, detail)
}

type updateApplicationRequest struct {
	Status string `json:"status"`
}

type updateApplicationResponse struct {
	Status               string `json:"status"`
	DirectoryProvisioned bool   `json:"directory_provisioned"`
}

// UpdateApplication settles a pending application. An accepted application
// assigns the instructor to the course and provisions their content
// directories. A settled application cannot be decided again.
func (s *AdminService) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	applicationId, err := utils.URLParamUUID(r, "application_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateApplicationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidDecision(params.Status); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	slog.Info("updating application status", "application_id", applicationId, "status", params.Status)

	var application schema.Application

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var err error
		application, err = schema.GetApplication(applicationId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrApplicationNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if application.Status != schema.Pending {
			return CodedError(fmt.Errorf("application %v has already been %v", applicationId, application.Status), http.StatusConflict)
		}

		result := txn.Model(&schema.Application{Id: applicationId}).Update("status", params.Status)
		if result.Error != nil {
			slog.Error("sql error updating application status", "application_id", applicationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if params.Status == schema.Accepted {
			assignment := schema.CourseAssignment{
				InstructorId: application.InstructorId,
				CourseId:     application.CourseId,
			}
			result := txn.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment)
			if result.Error != nil {
				slog.Error("sql error creating course assignment", "application_id", applicationId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating application: %v", err), GetResponseCode(err))
		return
	}

	res := updateApplicationResponse{Status: params.Status}

	// Provisioning happens after the commit so that a disk failure does not
	// roll back the decision. The reconciler retries missed directories.
	if params.Status == schema.Accepted {
		_, err := storage.EnsureCourseDir(s.storage, application.InstructorId, application.CourseId)
		if err != nil {
			slog.Error("error provisioning course directory for accepted application",
				"application_id", applicationId, "instructor_id", application.InstructorId, "course_id", application.CourseId, "error", err)
		} else {
			res.DirectoryProvisioned = true
		}
	}

	decisionMetric.WithLabelValues(params.Status).Inc()

	slog.Info("application status updated successfully", "application_id", applicationId, "status", params.Status)

	utils.WriteJsonResponse(w, res)
}
