package config

import (
	"errors"
	"testing"

	"github.com/codeboarding/increco/internal/project"
)

func TestSetProjectContext_NilPanics(t *testing.T) {
	ClearProjectContext()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil context")
		}
	}()
	SetProjectContext(nil)
}

func TestSetProjectContext_ValidContext(t *testing.T) {
	ClearProjectContext()
	defer ClearProjectContext()

	ctx := &project.Context{
		RootPath:   "/test/path",
		MarkerType: project.MarkerGit,
	}
	SetProjectContext(ctx)

	got := GetProjectContext()
	if got == nil {
		t.Fatal("expected context to be set")
	}
	if got.RootPath != ctx.RootPath {
		t.Errorf("expected RootPath %q, got %q", ctx.RootPath, got.RootPath)
	}
}

func TestMustGetProjectContext_NotSetPanics(t *testing.T) {
	ClearProjectContext()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when context not set")
		}
	}()
	MustGetProjectContext()
}

func TestMustGetProjectContext_Set(t *testing.T) {
	ClearProjectContext()
	defer ClearProjectContext()

	expected := &project.Context{RootPath: "/test"}
	SetProjectContext(expected)

	got := MustGetProjectContext()
	if got != expected {
		t.Error("context does not match expected")
	}
}

func TestGetProjectRoot_NotSet(t *testing.T) {
	ClearProjectContext()

	root, err := GetProjectRoot()
	if err == nil {
		t.Fatal("expected error when context not set")
	}
	if !errors.Is(err, ErrProjectContextNotSet) {
		t.Errorf("expected ErrProjectContextNotSet, got: %v", err)
	}
	if root != "" {
		t.Errorf("expected empty root, got: %s", root)
	}
}

func TestGetProjectRoot_EmptyRootPath(t *testing.T) {
	ClearProjectContext()
	defer ClearProjectContext()

	ctx := &project.Context{RootPath: ""}
	SetProjectContext(ctx)

	root, err := GetProjectRoot()
	if err == nil {
		t.Fatal("expected error for empty RootPath")
	}
	if root != "" {
		t.Errorf("expected empty root, got: %s", root)
	}
}

func TestGetProjectRoot_Valid(t *testing.T) {
	ClearProjectContext()
	defer ClearProjectContext()

	expected := "/my/project"
	ctx := &project.Context{RootPath: expected}
	SetProjectContext(ctx)

	root, err := GetProjectRoot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != expected {
		t.Errorf("expected %q, got %q", expected, root)
	}
}

func TestGetOutputBasePath_NotSet(t *testing.T) {
	ClearProjectContext()

	path, err := GetOutputBasePath()
	if err == nil {
		t.Fatal("expected error when context not set")
	}
	if !errors.Is(err, ErrProjectContextNotSet) {
		t.Errorf("expected ErrProjectContextNotSet, got: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got: %s", path)
	}
}

func TestGetOutputBasePathOrGlobal_FallsBackToGlobal(t *testing.T) {
	ClearProjectContext()

	path := GetOutputBasePathOrGlobal()
	if path == "" {
		t.Error("expected non-empty path")
	}
	if len(path) < 8 || path[len(path)-8:] != "analysis" {
		t.Errorf("expected path to end with 'analysis', got: %s", path)
	}
}

func TestGetOutputBasePathOrGlobal_GlobalDirErrorPanics(t *testing.T) {
	ClearProjectContext()

	original := GetGlobalConfigDir
	defer func() { GetGlobalConfigDir = original }()

	GetGlobalConfigDir = func() (string, error) {
		return "", errors.New("test error: cannot get home dir")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when global config dir fails")
		}
	}()
	GetOutputBasePathOrGlobal()
}
