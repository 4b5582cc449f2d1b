package versions

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Quiz numbering used to be derived from counting the files in the quizzes
// directory, which raced with concurrent uploads and broke when files were
// removed. The counter table makes quiz numbers monotonic.
func Migration_1_add_quiz_counters(txn *gorm.DB) error {
	type QuizCounter struct {
		InstructorId uuid.UUID `gorm:"type:uuid;primaryKey"`
		CourseId     uuid.UUID `gorm:"type:uuid;primaryKey"`
		NextNumber   int       `gorm:"not null;default:0"`
	}

	return txn.Migrator().CreateTable(&QuizCounter{})
}
