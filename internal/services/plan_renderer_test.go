package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lessonforge/backend/internal/types"
)

func TestSanitizeTopic(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Frame Basics", "Frame Basics"},
		{`a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"  padded  ", "padded"},
		{"", "lesson"},
		{"///", "---"},
	}
	for _, c := range cases {
		if got := SanitizeTopic(c.in); got != c.want {
			t.Fatalf("SanitizeTopic(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMarkdownRenderer_Render(t *testing.T) {
	log, err := testLogger()
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	dir := t.TempDir()
	renderer, err := NewMarkdownRenderer(log, dir)
	if err != nil {
		t.Fatalf("NewMarkdownRenderer: %v", err)
	}

	plan := &types.LessonPlan{}
	plan.ContentAnalysis.TeachingContent = "Airframe layout and material selection."
	plan.Objectives.Knowledge = "Identify the structural parts of a quadcopter frame."
	plan.KeyPoints = []string{"Arm geometry", "Mounting patterns"}
	plan.TeachingProcess = []types.ProcessStep{
		{Phase: "Introduction", Duration: "10 min", Content: "Show an assembled frame.", TeacherActivity: "Demonstrate", StudentActivity: "Observe"},
		{Phase: "Practice", Duration: "30 min", Content: "Assemble arms.", TeacherActivity: "Coach", StudentActivity: "Assemble"},
	}

	rendered, err := renderer.Render(2, types.CourseProfile{CourseName: "UAV Assembly"}, types.LessonInput{Topic: "Frame: Basics"}, plan)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered.FileName != "02_Frame- Basics.md" {
		t.Fatalf("FileName = %q", rendered.FileName)
	}
	if rendered.FileURL != "/download/02_Frame- Basics.md" {
		t.Fatalf("FileURL = %q", rendered.FileURL)
	}

	raw, err := os.ReadFile(filepath.Join(dir, rendered.FileName))
	if err != nil {
		t.Fatalf("read rendered file: %v", err)
	}
	body := string(raw)
	for _, want := range []string{
		"# Lesson Plan: Frame: Basics",
		"UAV Assembly",
		"Airframe layout and material selection.",
		"### Phase 1: Introduction (10 min)",
		"### Phase 2: Practice (30 min)",
		"- Arm geometry",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("rendered document missing %q:\n%s", want, body)
		}
	}
}

func TestMarkdownRenderer_NilPlan(t *testing.T) {
	log, err := testLogger()
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	renderer, err := NewMarkdownRenderer(log, t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownRenderer: %v", err)
	}
	if _, err := renderer.Render(1, types.CourseProfile{}, types.LessonInput{Topic: "x"}, nil); err == nil {
		t.Fatalf("nil plan accepted")
	}
}
