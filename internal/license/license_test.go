package license

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner reports an evaluation banner unless license.txt contains
// "VALID".
type fakeRunner struct {
	licensePath string
	calls       int
	lastArgs    []string
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	f.calls++
	f.lastArgs = args
	data, _ := os.ReadFile(f.licensePath)
	if strings.Contains(string(data), "VALID") {
		return "SQLines Data 3.3\n", nil
	}
	return "SQLines Data 3.3 - FOR EVALUATION USE ONLY\n", nil
}

func setupChecker(t *testing.T, content string) (*Checker, *fakeRunner, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	runner := &fakeRunner{licensePath: path}
	return New(dir, runner, nil), runner, path
}

func TestChecker_IsActive(t *testing.T) {
	c, runner, _ := setupChecker(t, "VALID")
	active, err := c.IsActive(context.Background())
	if err != nil {
		t.Fatalf("IsActive() failed: %v", err)
	}
	if !active {
		t.Error("IsActive() = false, want true")
	}
	if len(runner.lastArgs) != 1 || !strings.HasPrefix(runner.lastArgs[0], "-log=") {
		t.Errorf("probe args = %v, want a single -log= argument", runner.lastArgs)
	}

	c2, _, _ := setupChecker(t, "trial")
	if active, _ := c2.IsActive(context.Background()); active {
		t.Error("evaluation banner should mean inactive")
	}
}

func TestChecker_IsActiveMissingFile(t *testing.T) {
	c, runner, _ := setupChecker(t, "")
	if _, err := c.IsActive(context.Background()); !errors.Is(err, ErrLicenseFileMissing) {
		t.Errorf("IsActive() error = %v, want ErrLicenseFileMissing", err)
	}
	if runner.calls != 0 {
		t.Error("converter should not run without a license file")
	}
}

func TestChecker_CheckFiresOnChange(t *testing.T) {
	c, runner, path := setupChecker(t, "trial")

	var got []bool
	c.AddListener(func(active bool) { got = append(got, active) })

	if err := c.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 || runner.calls != 0 {
		t.Fatal("unchanged file must not trigger a probe")
	}

	_ = os.WriteFile(path, []byte("VALID"), 0644)
	later := time.Now().Add(time.Minute)
	_ = os.Chtimes(path, later, later)

	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if len(got) != 1 || !got[0] {
		t.Errorf("listener calls = %v, want [true]", got)
	}

	_ = os.Remove(path)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check() after delete failed: %v", err)
	}
	if len(got) != 2 || got[1] {
		t.Errorf("listener calls = %v, want [true false]", got)
	}
}

func TestChecker_Register(t *testing.T) {
	c, _, path := setupChecker(t, "trial")
	var got []bool
	id := c.AddListener(func(active bool) { got = append(got, active) })

	err := c.Register(context.Background(), "ACME", "0000")
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("Register() error = %v, want ErrInvalidRegistration", err)
	}
	data, _ := os.ReadFile(path)
	want := "SQLines license file:\n\nRegistration Name: ACME\nRegistration Number: 0000"
	if string(data) != want {
		t.Errorf("license file = %q, want %q", data, want)
	}

	if err := c.Register(context.Background(), "ACME", "VALID-1234"); err != nil {
		t.Errorf("Register() failed: %v", err)
	}
	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("listener calls = %v, want [false true]", got)
	}

	// Registration already updated the tracked mtime.
	got = nil
	_ = c.Check(context.Background())
	if len(got) != 0 {
		t.Errorf("Check() after Register fired %v", got)
	}

	if !c.RemoveListener(id) {
		t.Error("RemoveListener() returned false")
	}
}

func TestChecker_RegisterMissingFile(t *testing.T) {
	c, _, path := setupChecker(t, "")
	if err := c.Register(context.Background(), "a", "b"); !errors.Is(err, ErrLicenseFileMissing) {
		t.Errorf("Register() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Register() must not create the license file")
	}
}
