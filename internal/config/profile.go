package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lessonforge/backend/internal/types"
)

// DefaultCourseProfile is used when no profile file is configured. Request
// payloads override individual fields per batch.
func DefaultCourseProfile() types.CourseProfile {
	return types.CourseProfile{
		CourseName: "UAV Assembly and Tuning",
		Program:    "Unmanned Aerial Vehicle Application Technology",
		ClassName:  "UAV-1",
		Teacher:    "TBD",
		Term:       "2025-2026",
	}
}

// LoadCourseProfile reads the fixed course profile from a YAML file. A
// missing path yields the built-in defaults.
func LoadCourseProfile(path string) (types.CourseProfile, error) {
	profile := DefaultCourseProfile()
	if path == "" {
		return profile, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profile, nil
		}
		return profile, fmt.Errorf("read course profile: %w", err)
	}
	var fromFile types.CourseProfile
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return profile, fmt.Errorf("parse course profile: %w", err)
	}
	return profile.Merge(fromFile), nil
}
