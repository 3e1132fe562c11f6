package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

func TestLoadMissing(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	if _, err := m.Load("course"); !errors.Is(err, ErrRosterNotFound) {
		t.Fatalf("err = %v, want ErrRosterNotFound", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	r := roster.New()
	r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "Alice", Email: "a@x.edu"}))
	if _, err := r.AddAssignment(roster.Assignment{Name: "hw1"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Save("course", r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := m.Load("course")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Students) != 1 || got.Students[0].Email != "a@x.edu" {
		t.Errorf("students = %+v", got.Students)
	}
	if len(got.Assignments) != 1 || got.Assignments[0].Name != "hw1" {
		t.Errorf("assignments = %+v", got.Assignments)
	}
	if got.Version != roster.CurrentVersion {
		t.Errorf("version = %d", got.Version)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	for i := 0; i < 3; i++ {
		if err := m.Save("course", roster.New()); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(m.ProfileDir("course"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != rosterFile && e.Name() != lockFile {
			t.Errorf("unexpected file %s", e.Name())
		}
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	if err := os.MkdirAll(m.ProfileDir("course"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.RosterPath("course"), []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load("course"); err == nil {
		t.Fatal("expected version error")
	}
}

func TestLoadOrCreate(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	r, err := m.LoadOrCreate("course")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if len(r.GroupSets) != 2 {
		t.Errorf("new roster group sets = %d, want 2 system sets", len(r.GroupSets))
	}
	if _, err := os.Stat(m.RosterPath("course")); !errors.Is(err, os.ErrNotExist) {
		t.Error("LoadOrCreate should not write the roster")
	}
}

func TestInvalidProfile(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	for _, name := range []string{"", "../etc", "a/b", ".hidden"} {
		if err := m.Save(name, roster.New()); !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("Save(%q) err = %v, want ErrInvalidProfile", name, err)
		}
	}
}

func TestProfilesAndDelete(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	names, err := m.Profiles()
	if err != nil || len(names) != 0 {
		t.Fatalf("Profiles() on empty root = %v, %v", names, err)
	}
	for _, p := range []string{"b-course", "a-course"} {
		if err := m.Save(p, roster.New()); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(m.Root(), "profiles", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err = m.Profiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a-course" || names[1] != "b-course" {
		t.Fatalf("Profiles() = %v", names)
	}

	if err := m.Delete("a-course"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete("a-course"); !errors.Is(err, ErrRosterNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestSaveWaitsForLock(t *testing.T) {
	old := LockTimeout
	LockTimeout = 100 * time.Millisecond
	defer func() { LockTimeout = old }()

	m := NewManager(t.TempDir(), nil)
	if err := m.Save("course", roster.New()); err != nil {
		t.Fatal(err)
	}

	other := flock.New(filepath.Join(m.ProfileDir("course"), lockFile))
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	if err := m.Save("course", roster.New()); !errors.Is(err, ErrLocked) {
		t.Errorf("Save while locked err = %v, want ErrLocked", err)
	}
	if err := other.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := m.Save("course", roster.New()); err != nil {
		t.Errorf("Save after unlock: %v", err)
	}
}

func TestConcurrentSaves(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := roster.New()
			r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "x", Email: "x@x.edu"}))
			if err := m.Save("course", r); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := m.Load("course"); err != nil {
		t.Fatalf("Load after concurrent saves: %v", err)
	}
}

func TestUpdateMissingProfile(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	called := false
	err := m.Update("course", func(*roster.Roster) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrRosterNotFound) {
		t.Fatalf("err = %v, want ErrRosterNotFound", err)
	}
	if called {
		t.Error("fn called for a missing roster")
	}
	if _, err := os.Stat(m.ProfileDir("course")); !os.IsNotExist(err) {
		t.Errorf("profile directory created: %v", err)
	}
}

func TestUpdateErrorSavesNothing(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	if err := m.Save("course", roster.New()); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := m.Update("course", func(r *roster.Roster) error {
		r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "Alice", Email: "a@x.edu"}))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, err := m.Load("course")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Students) != 0 {
		t.Errorf("students = %+v, want none after a failed update", got.Students)
	}
}

func TestUpdateOrCreate(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	err := m.UpdateOrCreate("course", func(r *roster.Roster) error {
		if _, ok := r.GroupSetByName(roster.IndividualStudentsSetName); !ok {
			t.Error("new roster has no system group sets")
		}
		r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "Alice", Email: "a@x.edu"}))
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateOrCreate: %v", err)
	}
	got, err := m.Load("course")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Students) != 1 {
		t.Errorf("students = %+v", got.Students)
	}
}

func TestConcurrentUpdatesKeepEveryChange(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := m.UpdateOrCreate("course", func(r *roster.Roster) error {
				r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{
					Name:  fmt.Sprintf("Student %d", i),
					Email: fmt.Sprintf("s%d@x.edu", i),
				}))
				return nil
			})
			if err != nil {
				t.Errorf("UpdateOrCreate: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := m.Load("course")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Students) != writers {
		t.Errorf("students = %d, want %d", len(got.Students), writers)
	}
}
