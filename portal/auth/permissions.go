package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"studybuddy/portal/schema"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func isAssignedToCourse(instructorId, courseId uuid.UUID, db *gorm.DB) (bool, error) {
	var assignment schema.CourseAssignment
	result := db.Limit(1).Find(&assignment, "instructor_id = ? and course_id = ?", instructorId, courseId)
	if result.Error != nil {
		slog.Error("sql error checking course assignment", "instructor_id", instructorId, "course_id", courseId, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}
	return result.RowsAffected != 0, nil
}

// AssignedInstructorOnly restricts an endpoint with a course_id url param to
// instructors whose application for that course has been accepted.
func AssignedInstructorOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			courseId, err := utils.URLParamUUID(r, "course_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			principal, err := PrincipalFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			assigned, err := isAssignedToCourse(principal.Id, courseId, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !assigned {
				http.Error(w, fmt.Sprintf("instructor %v is not assigned to course %v", principal.Id, courseId), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
