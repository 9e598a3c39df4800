package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCourseProfile_MissingFileFallsBack(t *testing.T) {
	profile, err := LoadCourseProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadCourseProfile: %v", err)
	}
	if profile != DefaultCourseProfile() {
		t.Fatalf("missing file did not fall back to defaults: %+v", profile)
	}
}

func TestLoadCourseProfile_OverlaysOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	raw := "course_name: Drone Maintenance\nteacher: R. Osei\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	profile, err := LoadCourseProfile(path)
	if err != nil {
		t.Fatalf("LoadCourseProfile: %v", err)
	}
	if profile.CourseName != "Drone Maintenance" || profile.Teacher != "R. Osei" {
		t.Fatalf("file fields not applied: %+v", profile)
	}
	// Untouched fields keep their defaults.
	defaults := DefaultCourseProfile()
	if profile.Program != defaults.Program || profile.Term != defaults.Term {
		t.Fatalf("defaults lost: %+v", profile)
	}
}

func TestLoadCourseProfile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- nonsense"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := LoadCourseProfile(path); err == nil {
		t.Fatalf("malformed YAML accepted")
	}
}

func TestCourseProfileMerge(t *testing.T) {
	base := DefaultCourseProfile()
	merged := base.Merge(base)
	if merged != base {
		t.Fatalf("self-merge changed the profile: %+v", merged)
	}
}
