package services

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"studybuddy/portal/auth"
	"studybuddy/portal/schema"
	"studybuddy/portal/storage"
	"studybuddy/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentService handles course material and quiz files. Uploads are limited
// to the assigned instructor, listing and downloads are public.
type ContentService struct {
	db          *gorm.DB
	credentials auth.CredentialStore
	storage     storage.Storage
}

func (s *ContentService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.credentials.AuthMiddleware(auth.RoleInstructor)...)
		r.Use(auth.AssignedInstructorOnly(s.db))
		r.Use(checkSufficientStorage(s.storage))

		r.Post("/courses/{course_id}/materials", s.UploadMaterials)
		r.Post("/courses/{course_id}/quizzes", s.UploadQuizzes)
	})

	r.Group(func(r chi.Router) {
		r.Get("/courses/{course_id}/instructors/{instructor_id}/materials", s.ListMaterials)
		r.Get("/courses/{course_id}/instructors/{instructor_id}/quizzes", s.ListQuizzes)
		r.Get("/courses/{course_id}/instructors/{instructor_id}/materials/{filename}", s.Download)
	})

	return r
}

type uploadResponse struct {
	Files []string `json:"files"`
}

func (s *ContentService) UploadMaterials(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(uploadMetric)
	defer timer.ObserveDuration()

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

	boundary, err := getMultipartBoundary(r)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	saveDir := storage.CoursePath(principal.Id, courseId)

	filenames := make([]string, 0)

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

		if part.FormName() != "files" {
			continue
		}

		if part.FileName() == "" {
			http.Error(w, "invalid filename detected in upload files: filename cannot be empty", http.StatusUnprocessableEntity)
			return
		}

		// Prefixing with the upload time keeps repeated uploads of the same
		// file distinct.
		filename := fmt.Sprintf("%v-%v", time.Now().UnixMilli(), filepath.Base(part.FileName()))

		err = s.storage.Write(filepath.Join(saveDir, filename), part)
		if err != nil {
			slog.Error("error saving uploaded file", "error", err)
			http.Error(w, "error saving uploaded file", http.StatusInternalServerError)
			return
		}

		filenames = append(filenames, filename)
	}

	slog.Info("course materials uploaded", "instructor_id", principal.Id, "course_id", courseId, "count", len(filenames))

	utils.WriteJsonResponse(w, uploadResponse{Files: filenames})
}

func nextQuizNumber(txn *gorm.DB, instructorId, courseId uuid.UUID) (int, error) {
	counter := schema.QuizCounter{InstructorId: instructorId, CourseId: courseId}
	result := txn.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter)
	if result.Error != nil {
		slog.Error("sql error initializing quiz counter", "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	result = txn.Model(&schema.QuizCounter{}).
		Where("instructor_id = ? and course_id = ?", instructorId, courseId).
		Update("next_number", gorm.Expr("next_number + 1"))
	if result.Error != nil {
		slog.Error("sql error incrementing quiz counter", "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	var updated schema.QuizCounter
	result = txn.First(&updated, "instructor_id = ? and course_id = ?", instructorId, courseId)
	if result.Error != nil {
		slog.Error("sql error reading quiz counter", "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return updated.NextNumber, nil
}

func (s *ContentService) UploadQuizzes(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(uploadMetric)
	defer timer.ObserveDuration()

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

	boundary, err := getMultipartBoundary(r)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	quizDir := storage.QuizPath(principal.Id, courseId)

	filenames := make([]string, 0)

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

		if part.FormName() != "files" {
			continue
		}

		if part.FileName() == "" {
			http.Error(w, "invalid filename detected in upload files: filename cannot be empty", http.StatusUnprocessableEntity)
			return
		}

		var quizNumber int
		err = s.db.Transaction(func(txn *gorm.DB) error {
			var err error
			quizNumber, err = nextQuizNumber(txn, principal.Id, courseId)
			return err
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("error assigning quiz number: %v", err), GetResponseCode(err))
			return
		}

		filename := fmt.Sprintf("quiz-%v-%v", quizNumber, filepath.Base(part.FileName()))

		err = s.storage.Write(filepath.Join(quizDir, filename), part)
		if err != nil {
			slog.Error("error saving uploaded quiz", "error", err)
			http.Error(w, "error saving uploaded quiz", http.StatusInternalServerError)
			return
		}

		filenames = append(filenames, filename)
	}

	slog.Info("quizzes uploaded", "instructor_id", principal.Id, "course_id", courseId, "count", len(filenames))

	utils.WriteJsonResponse(w, uploadResponse{Files: filenames})
}

func (s *ContentService) contentParams(w http.ResponseWriter, r *http.Request) (instructorId, courseId uuid.UUID, ok bool) {
	courseId, err := utils.URLParamUUID(r, "course_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}

	instructorId, err = utils.URLParamUUID(r, "instructor_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}

	if err := checkInstructorAssigned(s.db, instructorId, courseId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return uuid.Nil, uuid.Nil, false
	}

	return instructorId, courseId, true
}

// listContent lists the files in a provisioned content directory. A missing
// directory for a valid assignment is repaired and reported as empty.
func (s *ContentService) listContent(w http.ResponseWriter, instructorId, courseId uuid.UUID, dir string) {
	exists, err := s.storage.Exists(dir)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing course content: %v", err), http.StatusInternalServerError)
		return
	}

	if !exists {
		if _, err := storage.EnsureCourseDir(s.storage, instructorId, courseId); err != nil {
			slog.Error("error reprovisioning missing course directory", "instructor_id", instructorId, "course_id", courseId, "error", err)
			http.Error(w, "error listing course content", http.StatusInternalServerError)
			return
		}
		utils.WriteJsonResponse(w, uploadResponse{Files: []string{}})
		return
	}

	entries, err := s.storage.List(dir)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing course content: %v", err), http.StatusInternalServerError)
		return
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry == "quizzes" {
			continue
		}
		files = append(files, entry)
	}

	utils.WriteJsonResponse(w, uploadResponse{Files: files})
}

func (s *ContentService) ListMaterials(w http.ResponseWriter, r *http.Request) {
	instructorId, courseId, ok := s.contentParams(w, r)
	if !ok {
		return
	}

	s.listContent(w, instructorId, courseId, storage.CoursePath(instructorId, courseId))
}

func (s *ContentService) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	instructorId, courseId, ok := s.contentParams(w, r)
	if !ok {
		return
	}

	s.listContent(w, instructorId, courseId, storage.QuizPath(instructorId, courseId))
}

func (s *ContentService) Download(w http.ResponseWriter, r *http.Request) {
	instructorId, courseId, ok := s.contentParams(w, r)
	if !ok {
		return
	}

	filename, err := utils.URLParam(r, "filename")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if filepath.Base(filename) != filename {
		http.Error(w, fmt.Sprintf("invalid filename '%v'", filename), http.StatusUnprocessableEntity)
		return
	}

	path := filepath.Join(storage.CoursePath(instructorId, courseId), filename)

	exists, err := s.storage.Exists(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("error downloading file: %v", err), http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, fmt.Sprintf("file '%v' not found", filename), http.StatusNotFound)
		return
	}

	file, err := s.storage.Read(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("error downloading file: %v", err), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/octet-stream")

	if _, err := io.Copy(w, file); err != nil {
		slog.Error("error streaming file to client", "path", path, "error", err)
	}
}
