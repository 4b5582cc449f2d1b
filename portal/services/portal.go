package services

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"studybuddy/portal/auth"
	"studybuddy/portal/schema"
	"studybuddy/portal/storage"
	"studybuddy/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	enrollmentMetric  = promauto.NewCounter(prometheus.CounterOpts{Name: "portal_enrollments", Help: "Course enrollments"})
	applicationMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "portal_applications", Help: "Instructor applications submitted"})
	decisionMetric    = promauto.NewCounterVec(prometheus.CounterOpts{Name: "portal_application_decisions", Help: "Application decisions by status"}, []string{"status"})
	uploadMetric      = promauto.NewSummary(prometheus.SummaryOpts{Name: "portal_content_uploads", Help: "Course content uploads"})
)

type Portal struct {
	student    StudentService
	instructor InstructorService
	admin      AdminService
	catalog    CatalogService
	content    ContentService

	db      *gorm.DB
	storage storage.Storage
	stop    chan bool
}

func NewPortal(db *gorm.DB, store storage.Storage, credentials auth.CredentialStore) Portal {
	return Portal{
		student:    StudentService{db: db, credentials: credentials},
		instructor: InstructorService{db: db, credentials: credentials, storage: store},
		admin:      AdminService{db: db, credentials: credentials, storage: store},
		catalog:    CatalogService{db: db},
		content:    ContentService{db: db, credentials: credentials, storage: store},
		db:         db,
		storage:    store,
		stop:       make(chan bool, 1),
	}
}

func (p *Portal) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/student", p.student.Routes())
	r.Mount("/instructor", p.instructor.Routes())
	r.Mount("/admin", p.admin.Routes())
	r.Mount("/catalog", p.catalog.Routes())
	r.Mount("/content", p.content.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// provisionSync repairs content directories that are missing for accepted
// assignments, e.g. when the disk was unavailable at decision time.
func (p *Portal) provisionSync() {
	var assignments []schema.CourseAssignment

	result := p.db.Find(&assignments)
	if result.Error != nil {
		slog.Error("provision sync: sql error querying course assignments", "error", result.Error)
		return
	}

	for _, assignment := range assignments {
		quizDir := storage.QuizPath(assignment.InstructorId, assignment.CourseId)

		exists, err := p.storage.Exists(quizDir)
		if err != nil {
			slog.Error("provision sync: error checking course directory", "instructor_id", assignment.InstructorId, "course_id", assignment.CourseId, "error", err)
			continue
		}
		if exists {
			continue
		}

		if _, err := storage.EnsureCourseDir(p.storage, assignment.InstructorId, assignment.CourseId); err != nil {
			slog.Error("provision sync: error provisioning course directory", "instructor_id", assignment.InstructorId, "course_id", assignment.CourseId, "error", err)
			continue
		}

		slog.Info("provision sync: provisioned missing course directory", "instructor_id", assignment.InstructorId, "course_id", assignment.CourseId)
	}
}

func (p *Portal) ProvisionSync(interval time.Duration) {
	slog.Info("provision sync: starting")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.provisionSync()
		case <-p.stop:
			slog.Info("provision sync: process stopped")
			return
		}
	}
}

func (p *Portal) StopProvisionSync() {
	close(p.stop)
}
