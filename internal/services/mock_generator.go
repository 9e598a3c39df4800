package services

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/lessonforge/backend/internal/pkg/errors"
	"github.com/lessonforge/backend/internal/types"
)

// mockGenerator returns a deterministic plan without calling out. Enabled via
// GENERATOR_MOCK=1 for demos and local runs with no credential spend.
type mockGenerator struct{}

func NewMockGenerator() TextGenerator {
	return &mockGenerator{}
}

func (m *mockGenerator) GenerateLessonPlan(ctx context.Context, prompt string, credential string) (*types.LessonPlan, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("no generator credential supplied: %w", pkgerrors.ErrInvalidCredential)
	}

	var plan types.LessonPlan
	plan.ContentAnalysis.TeachingContent = "The session opens with a review of the previous unit, then walks through the core concepts of the topic with worked examples, closing with a guided practice segment that applies the material to a realistic task."
	plan.ContentAnalysis.LearnerAnalysis = "Students have everyday familiarity with the subject matter but lack the vocabulary and selection criteria to reason about it professionally; common points of confusion are addressed through comparison and analogy."
	plan.Objectives.Knowledge = "Name the main categories covered in the topic and state the core purpose of each."
	plan.Objectives.Ability = "Select the appropriate option for a given practical scenario and justify the choice."
	plan.Objectives.Quality = "Develop habits of careful, standards-driven work and an appreciation for established practice."
	plan.KeyPoints = []string{
		"Core categories and their primary uses",
		"Matching options to practical scenarios",
		"Safety and quality conventions for the task",
	}
	plan.Difficulties = []string{
		"Distinguishing superficially similar options",
		"Applying selection rules under realistic constraints",
	}
	plan.MethodsResources.Methods = "Lecture with demonstration, guided comparison, scenario-based questioning"
	plan.MethodsResources.Resources = "Slide deck with reference images, printed quick-reference sheet, sample materials"
	plan.ValuesElements = []string{
		"Professional rigor and respect for working standards",
		"Teamwork during the guided practice segment",
		"Awareness of safe working practice",
	}
	plan.TeachingProcess = []types.ProcessStep{
		{
			Phase:           "Review and lead-in",
			Duration:        "7min",
			Content:         "Recap the previous session with targeted questions and introduce today's topic through a motivating example.",
			TeacherActivity: "Poses review questions, corrects misconceptions, frames the new topic.",
			StudentActivity: "Answers questions, connects prior knowledge to the new material.",
		},
		{
			Phase:           "Core instruction",
			Duration:        "20min",
			Content:         "Present the main categories with annotated examples, highlighting the distinguishing features of each.",
			TeacherActivity: "Explains with visual aids, demonstrates comparisons, checks understanding.",
			StudentActivity: "Takes structured notes, asks clarifying questions.",
		},
		{
			Phase:           "Guided practice",
			Duration:        "13min",
			Content:         "Scenario exercise: students select the right option for three practical cases and defend their reasoning.",
			TeacherActivity: "Presents scenarios, moderates discussion, extends with follow-up questions.",
			StudentActivity: "Works through the cases, articulates and defends choices.",
		},
		{
			Phase:           "Summary and assignment",
			Duration:        "5min",
			Content:         "Condense the session into a category-to-use reference and assign follow-up work.",
			TeacherActivity: "Leads the recap, explains the assignment requirements.",
			StudentActivity: "Completes notes, records the assignment.",
		},
	}
	plan.Homework.Basic = "Find one real-world example for each category covered and annotate its use."
	plan.Homework.Advanced = "Compare two closely related options and summarize when each is preferable."
	plan.Homework.Preview = "Skim the next unit's introduction and note any unfamiliar terms."
	return &plan, nil
}
