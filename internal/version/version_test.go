package version

import (
	"strings"
	"testing"
)

func TestInitPopulatesDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version is empty after init")
	}
	if Commit == "" {
		t.Error("Commit is empty after init")
	}
}

func TestFull(t *testing.T) {
	got := Full()
	if !strings.Contains(got, Version) {
		t.Errorf("Full() = %q, missing version %q", got, Version)
	}
	if !strings.Contains(got, "(commit: "+Commit+")") {
		t.Errorf("Full() = %q, missing commit %q", got, Commit)
	}
}
