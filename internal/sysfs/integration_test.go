package sysfs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/devtree/internal/devtree"
	"github.com/muurk/devtree/internal/subsys"
	"github.com/muurk/devtree/internal/sysfs"
)

// TestWrapperOverSysfs drives the full wrapper stack against a
// synthetic tree: open, enumerate, traverse, tear down.
func TestWrapperOverSysfs(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}

	cardPath := filepath.Join(root, "devices/pci0000:00/0000:00:02.0/drm/card0")
	pciPath := filepath.Join(root, "devices/pci0000:00/0000:00:02.0")
	mustWrite(t, filepath.Join(pciPath, "uevent"), "DRIVER=i915\nPCI_ID=8086:9A49\n")
	mustWrite(t, filepath.Join(cardPath, "uevent"), "DEVNAME=dri/card0\nMAJOR=226\nMINOR=0\n")
	mustSymlink(t, filepath.Join(root, "class/drm"), filepath.Join(cardPath, "subsystem"))
	mustSymlink(t, filepath.Join(root, "bus/pci"), filepath.Join(pciPath, "subsystem"))
	mustSymlink(t, cardPath, filepath.Join(root, "class/drm/card0"))
	mustSymlink(t, pciPath, filepath.Join(root, "bus/pci/devices/0000:00:02.0"))

	ctx, err := devtree.Open(sysfs.New(sysfs.WithRoot(root)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ctx.Close()

	e, err := devtree.NewEnumerator(ctx)
	if err != nil {
		t.Fatalf("NewEnumerator() error = %v", err)
	}
	defer e.Close()
	e.MatchSubsystem("drm")

	devices, err := e.Devices()
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Devices() returned %d devices, want 1", len(devices))
	}
	card := devices[0]
	defer card.Close()

	if got := card.Sysname(); got != "card0" {
		t.Errorf("Sysname() = %q, want %q", got, "card0")
	}
	if got := card.Devnode(); got != "/dev/dri/card0" {
		t.Errorf("Devnode() = %q, want %q", got, "/dev/dri/card0")
	}

	pci, ok := card.Parent()
	if !ok {
		t.Fatal("card has no parent")
	}
	defer pci.Close()
	if v, ok := pci.Property("DRIVER"); !ok || v != "i915" {
		t.Errorf("parent Property(DRIVER) = %q, %v", v, ok)
	}

	if _, err := devtree.DeviceFromSyspath(ctx, filepath.Join(root, "devices/ghost")); !errors.Is(err, subsys.ErrNotFound) {
		t.Errorf("lookup of missing device error = %v, want ErrNotFound", err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func mustSymlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
}
