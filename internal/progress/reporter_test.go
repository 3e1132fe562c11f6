package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{w: &buf}
	r.Start(2, "Creating repositories")
	r.Update(1, "hw1-team-1")
	r.Update(2, "hw1-team-2")
	r.Finish()

	want := "Creating repositories: 2 repositories\n[1/2] hw1-team-1\n[2/2] hw1-team-2\ndone\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestNewReporterCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter(&bytes.Buffer{}).(*CIReporter); !ok {
		t.Error("expected CIReporter when CI is set")
	}
}

func TestNewReporterTerminal(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	var buf bytes.Buffer
	r := NewReporter(&buf)
	if _, ok := r.(*TerminalReporter); !ok {
		t.Fatal("expected TerminalReporter")
	}
	r.Start(3, "Cloning")
	r.Update(1, "hw1-team-1")
	r.Finish()
}

func TestFuncSerializes(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{w: &buf}
	r.Start(10, "x")
	fn := Func(r)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn(i, 10, "repo")
		}(i)
	}
	wg.Wait()

	if n := strings.Count(buf.String(), "] repo\n"); n != 10 {
		t.Errorf("got %d progress lines, want 10", n)
	}
}
