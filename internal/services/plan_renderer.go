package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/lessonforge/backend/internal/logger"
	"github.com/lessonforge/backend/internal/types"
)

// RenderedFile points at a materialized lesson-plan document.
type RenderedFile struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	Path     string `json:"-"`
}

// DocumentRenderer turns a generated plan into a downloadable document.
type DocumentRenderer interface {
	Render(index int, profile types.CourseProfile, lesson types.LessonInput, plan *types.LessonPlan) (*RenderedFile, error)
}

type markdownRenderer struct {
	log       *logger.Logger
	outputDir string
	tmpl      *template.Template
}

func NewMarkdownRenderer(baseLog *logger.Logger, outputDir string) (DocumentRenderer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmpl, err := template.New("lessonplan").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Parse(lessonPlanTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse lesson plan template: %w", err)
	}
	return &markdownRenderer{
		log:       baseLog.With("service", "MarkdownRenderer"),
		outputDir: outputDir,
		tmpl:      tmpl,
	}, nil
}

func (r *markdownRenderer) Render(index int, profile types.CourseProfile, lesson types.LessonInput, plan *types.LessonPlan) (*RenderedFile, error) {
	if plan == nil {
		return nil, fmt.Errorf("nil lesson plan")
	}
	fileName := fmt.Sprintf("%02d_%s.md", index, SanitizeTopic(lesson.Topic))
	path := filepath.Join(r.outputDir, fileName)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	data := struct {
		Profile types.CourseProfile
		Lesson  types.LessonInput
		Plan    *types.LessonPlan
	}{profile, lesson, plan}

	if err := r.tmpl.Execute(f, data); err != nil {
		// Leave no half-written document behind.
		_ = os.Remove(path)
		return nil, fmt.Errorf("render %s: %w", fileName, err)
	}

	r.log.Debug("lesson plan rendered", "file", fileName)
	return &RenderedFile{
		FileName: fileName,
		FileURL:  "/download/" + fileName,
		Path:     path,
	}, nil
}

// SanitizeTopic makes a topic safe for use in a filename.
func SanitizeTopic(topic string) string {
	replacer := strings.NewReplacer(
		"\\", "-", "/", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-", "|", "-",
	)
	out := strings.TrimSpace(replacer.Replace(topic))
	if out == "" {
		out = "lesson"
	}
	return out
}

const lessonPlanTemplate = `# Lesson Plan: {{.Lesson.Topic}}

| | |
|---|---|
| Course | {{.Profile.CourseName}} |
| Program | {{.Profile.Program}} |
| Class | {{.Profile.ClassName}} |
| Teacher | {{.Profile.Teacher}} |
| Term | {{.Profile.Term}} |
| Location | {{.Lesson.Location}} |
| Time | {{.Lesson.Time}} |
| Duration | {{.Lesson.DurationLabel}} |
| Type | {{.Lesson.TypeLabel}} |

## Teaching Content and Learner Analysis

**Teaching content.** {{.Plan.ContentAnalysis.TeachingContent}}

**Learner analysis.** {{.Plan.ContentAnalysis.LearnerAnalysis}}

## Objectives

- **Knowledge:** {{.Plan.Objectives.Knowledge}}
- **Ability:** {{.Plan.Objectives.Ability}}
- **Quality:** {{.Plan.Objectives.Quality}}

## Key Points
{{range .Plan.KeyPoints}}
- {{.}}{{end}}

## Difficulties
{{range .Plan.Difficulties}}
- {{.}}{{end}}

## Methods and Resources

**Methods.** {{.Plan.MethodsResources.Methods}}

**Resources.** {{.Plan.MethodsResources.Resources}}

## Values Education Elements
{{range .Plan.ValuesElements}}
- {{.}}{{end}}

## Teaching Process
{{range $i, $step := .Plan.TeachingProcess}}
### Phase {{inc $i}}: {{$step.Phase}} ({{$step.Duration}})

{{$step.Content}}

- **Teacher:** {{$step.TeacherActivity}}
- **Students:** {{$step.StudentActivity}}
{{end}}
## Homework

- **Foundation:** {{.Plan.Homework.Basic}}
- **Extension:** {{.Plan.Homework.Advanced}}
- **Preview:** {{.Plan.Homework.Preview}}
`
