package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionStatus is the lifecycle state of a generation session. Transitions
// only move forward: idle -> generating -> completed|error.
type SessionStatus string

const (
	SessionIdle       SessionStatus = "idle"
	SessionGenerating SessionStatus = "generating"
	SessionCompleted  SessionStatus = "completed"
	SessionError      SessionStatus = "error"
)

// Terminal reports whether a session in this status can never change again.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionError
}

// LogRecord is one timestamped progress line appended to a session. Records
// are immutable once appended and addressed by their position in the log.
type LogRecord struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// LessonResult is the outcome of one lesson in a batch, appended in
// submission order. A lesson the orchestrator never reached has no result.
type LessonResult struct {
	Topic    string `json:"topic"`
	Status   string `json:"status"`
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Message  string `json:"message,omitempty"`
}

// LessonInput is one lesson as submitted by the caller. Every labeled field
// is required except UserDescription; Documents refers to previously uploaded
// reference material by lesson id.
type LessonInput struct {
	ID              string   `json:"id"`
	Topic           string   `json:"topic"`
	Location        string   `json:"location"`
	Time            string   `json:"time"`
	DurationLabel   string   `json:"duration_label"`
	TypeLabel       string   `json:"type_label"`
	UserDescription string   `json:"user_description,omitempty"`
	Documents       []string `json:"documents,omitempty"`
}

// CourseProfile is the fixed course info shared by every lesson in a batch.
// Zero-value fields fall back to the server-side defaults profile.
type CourseProfile struct {
	CourseName string `json:"course_name" yaml:"course_name"`
	Program    string `json:"program" yaml:"program"`
	ClassName  string `json:"class_name" yaml:"class_name"`
	Teacher    string `json:"teacher" yaml:"teacher"`
	Term       string `json:"term" yaml:"term"`
}

// Merge overlays non-empty fields of other on top of p.
func (p CourseProfile) Merge(other CourseProfile) CourseProfile {
	out := p
	if other.CourseName != "" {
		out.CourseName = other.CourseName
	}
	if other.Program != "" {
		out.Program = other.Program
	}
	if other.ClassName != "" {
		out.ClassName = other.ClassName
	}
	if other.Teacher != "" {
		out.Teacher = other.Teacher
	}
	if other.Term != "" {
		out.Term = other.Term
	}
	return out
}

// SessionSnapshot is an immutable copy of a session's visible state. Readers
// get their own slices; the store's internals are never shared.
type SessionSnapshot struct {
	ID             string          `json:"session_id"`
	Status         SessionStatus   `json:"status"`
	CurrentTopic   string          `json:"current_topic"`
	Results        []LessonResult  `json:"results"`
	LogCount       int             `json:"log_count"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

// ProcessStep is one phase of the teaching implementation plan.
type ProcessStep struct {
	Phase           string `json:"phase"`
	Duration        string `json:"duration"`
	Content         string `json:"content"`
	TeacherActivity string `json:"teacher_activity"`
	StudentActivity string `json:"student_activity"`
}

// LessonPlan is the structured document the text generator must return for
// one lesson. The generator is prompted to emit exactly this JSON shape.
type LessonPlan struct {
	ContentAnalysis struct {
		TeachingContent string `json:"teaching_content"`
		LearnerAnalysis string `json:"learner_analysis"`
	} `json:"content_analysis"`
	Objectives struct {
		Knowledge string `json:"knowledge"`
		Ability   string `json:"ability"`
		Quality   string `json:"quality"`
	} `json:"objectives"`
	KeyPoints        []string `json:"key_points"`
	Difficulties     []string `json:"difficulties"`
	MethodsResources struct {
		Methods   string `json:"methods"`
		Resources string `json:"resources"`
	} `json:"methods_resources"`
	ValuesElements  []string      `json:"values_elements"`
	TeachingProcess []ProcessStep `json:"teaching_process"`
	Homework        struct {
		Basic    string `json:"basic"`
		Advanced string `json:"advanced"`
		Preview  string `json:"preview"`
	} `json:"homework"`
}

// ReferenceDocument is one uploaded reference file attached to a lesson,
// with its extracted text content cataloged for prompt composition.
type ReferenceDocument struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID    string         `gorm:"index;not null" json:"lesson_id"`
	Filename    string         `gorm:"not null" json:"filename"`
	StoragePath string         `json:"-"`
	FileSize    int64          `json:"file_size"`
	Content     string         `gorm:"type:text" json:"-"`
	Summary     string         `json:"content_summary"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	UploadedAt  time.Time      `json:"upload_time"`
}
