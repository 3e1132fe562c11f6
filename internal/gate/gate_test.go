package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/repo-edu/repo-edu-sub001/internal/platform"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

// fakeProvisioner records calls and keeps repositories in memory.
type fakeProvisioner struct {
	mu       sync.Mutex
	repos    map[string]bool
	created  []platform.RepoSpec
	deleted  []string
	cloned   []string
	failOn   map[string]error
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func newFake() *fakeProvisioner {
	return &fakeProvisioner{repos: map[string]bool{}, failOn: map[string]error{}}
}

func (f *fakeProvisioner) track() func() {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&f.maxSeen)
		if n <= peak || atomic.CompareAndSwapInt32(&f.maxSeen, peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { atomic.AddInt32(&f.inFlight, -1) }
}

func (f *fakeProvisioner) RepoExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[name], nil
}

func (f *fakeProvisioner) CreateRepo(ctx context.Context, spec platform.RepoSpec) (*platform.Repo, error) {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[spec.Name]; err != nil {
		return nil, err
	}
	f.repos[spec.Name] = true
	f.created = append(f.created, spec)
	return &platform.Repo{Name: spec.Name}, nil
}

func (f *fakeProvisioner) DeleteRepo(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[name]; err != nil {
		return err
	}
	delete(f.repos, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeProvisioner) CloneRepo(ctx context.Context, name, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cloned = append(f.cloned, name)
	return os.MkdirAll(dest, 0o755)
}

type scenario struct {
	r *roster.Roster
	a *roster.Assignment
}

// newScenario builds a roster with one group per name, each holding one
// fresh student with a git username.
func newScenario(t *testing.T, groupNames ...string) *scenario {
	t.Helper()
	r := roster.New()
	set := r.AddGroupSet("Projects")
	setID := set.ID
	for i, name := range groupNames {
		m := r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{
			Name:        "Student " + name,
			Email:       strings.ToLower(strings.ReplaceAll(name, " ", "")) + "@x.edu",
			GitUsername: "user" + string(rune('a'+i)),
		}))
		set, _ = r.GroupSetByID(setID)
		if _, err := set.AddGroup(name, m.ID); err != nil {
			t.Fatal(err)
		}
	}
	a, err := r.AddAssignment(roster.Assignment{Name: "HW1", GroupSetID: setID, RepoNameTemplate: "{assignment}-{group}"})
	if err != nil {
		t.Fatal(err)
	}
	return &scenario{r: r, a: a}
}

func (s *scenario) plan(t *testing.T, opts PlanOptions) Plan {
	t.Helper()
	vr, err := validate.Assignment(s.r, s.a.ID, validate.Options{Identity: opts.Identity})
	if err != nil {
		t.Fatal(err)
	}
	return NewPlan(s.r, s.a, vr, opts)
}

func TestRunCreateEndToEnd(t *testing.T) {
	r := roster.New()
	a := *r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "A", Email: "a@x.edu", GitUsername: "a"}))
	b := *r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "B", Email: "b@x.edu", GitUsername: "b"}))
	set := r.AddGroupSet("Projects")
	setID := set.ID
	set.AddGroup("Team 1", a.ID, b.ID)
	asg, _ := r.AddAssignment(roster.Assignment{Name: "HW1", GroupSetID: setID, RepoNameTemplate: "{assignment}-{group}"})

	vr, err := validate.Assignment(r, "HW1", validate.Options{Identity: validate.IdentityUsername})
	if err != nil {
		t.Fatal(err)
	}
	if !vr.OK() {
		t.Fatalf("unexpected issues: %+v", vr.Issues)
	}

	plan := NewPlan(r, asg, vr, PlanOptions{Private: true})
	if len(plan.Targets) != 1 || plan.Targets[0].RepoName != "hw1-team-1" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	spec := plan.Targets[0].Spec
	if !spec.Private || len(spec.Collaborators) != 2 || spec.Collaborators[0].Username != "a" {
		t.Errorf("unexpected spec: %+v", spec)
	}

	fake := newFake()
	res := Run(context.Background(), fake, plan, Create, RunOptions{Concurrency: 2})
	if !res.OK() || res.Succeeded != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !fake.repos["hw1-team-1"] {
		t.Error("repository not created")
	}
}

func TestRunPartialFailure(t *testing.T) {
	s := newScenario(t, "Team 1", "Team 2", "Team 3")
	plan := s.plan(t, PlanOptions{})

	fake := newFake()
	fake.failOn["hw1-team-2"] = errors.New("boom")

	res := Run(context.Background(), fake, plan, Create, RunOptions{Concurrency: 3})
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d", res.Succeeded, res.Failed)
	}
	if len(res.Errors) != 1 || res.Errors[0].RepoName != "hw1-team-2" || res.Errors[0].Message != "boom" {
		t.Fatalf("unexpected errors: %+v", res.Errors)
	}
	if res.OK() {
		t.Error("a failed run must not be OK")
	}
	if got := []string{res.Outcomes[0].RepoName, res.Outcomes[1].RepoName, res.Outcomes[2].RepoName}; got[0] != "hw1-team-1" || got[2] != "hw1-team-3" {
		t.Errorf("outcomes not in target order: %v", got)
	}
}

func TestRunCreateSkipsExisting(t *testing.T) {
	s := newScenario(t, "Team 1", "Team 2")
	plan := s.plan(t, PlanOptions{})

	fake := newFake()
	fake.repos["hw1-team-1"] = true

	res := Run(context.Background(), fake, plan, Create, RunOptions{})
	if res.Succeeded != 1 || len(res.SkippedGroups) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.SkippedGroups[0].GroupName != "Team 1" || res.SkippedGroups[0].Reason != "repository already exists" {
		t.Errorf("unexpected skip: %+v", res.SkippedGroups[0])
	}
	if res.OK() {
		t.Error("skips must not count as success")
	}

	fake2 := newFake()
	fake2.repos["hw1-team-1"] = true
	res = Run(context.Background(), fake2, plan, Create, RunOptions{Overwrite: true})
	if res.Succeeded != 2 || !res.OK() {
		t.Fatalf("overwrite run: %+v", res)
	}
	if len(fake2.deleted) != 1 || fake2.deleted[0] != "hw1-team-1" {
		t.Errorf("deleted = %v", fake2.deleted)
	}
}

func TestRunDeleteAndClone(t *testing.T) {
	s := newScenario(t, "Team 1", "Team 2")
	plan := s.plan(t, PlanOptions{})

	fake := newFake()
	fake.repos["hw1-team-1"] = true

	dir := t.TempDir()
	res := Run(context.Background(), fake, plan, Clone, RunOptions{CloneDir: dir})
	if res.Succeeded != 1 || len(res.SkippedGroups) != 1 || res.SkippedGroups[0].Reason != "repository does not exist" {
		t.Fatalf("clone result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "hw1-team-1")); err != nil {
		t.Errorf("clone destination missing: %v", err)
	}

	res = Run(context.Background(), fake, plan, Clone, RunOptions{CloneDir: dir})
	if res.Succeeded != 0 || res.SkippedGroups[0].Reason != "already cloned" {
		t.Fatalf("second clone result: %+v", res)
	}

	res = Run(context.Background(), fake, plan, Delete, RunOptions{})
	if res.Succeeded != 1 || len(res.SkippedGroups) != 1 {
		t.Fatalf("delete result: %+v", res)
	}
	if fake.repos["hw1-team-1"] {
		t.Error("repository not deleted")
	}
}

func TestPlanSkipsFlaggedGroups(t *testing.T) {
	s := newScenario(t, "Team 1", "Team 2")
	set, _ := s.r.GroupSetByID(s.a.GroupSetID)
	empty, _ := set.AddGroup("Empty")
	emptyName := empty.Name
	// Team 2's student loses the username.
	s.r.Students[1].GitUsername = ""

	plan := s.plan(t, PlanOptions{Identity: validate.IdentityUsername})
	if len(plan.Targets) != 1 || plan.Targets[0].GroupName != "Team 1" {
		t.Fatalf("targets = %+v", plan.Targets)
	}
	if len(plan.Skipped) != 2 {
		t.Fatalf("skipped = %+v", plan.Skipped)
	}
	if plan.Skipped[0].GroupName != "Team 2" || !strings.Contains(plan.Skipped[0].Reason, "missing git username") {
		t.Errorf("unexpected skip: %+v", plan.Skipped[0])
	}
	if plan.Skipped[1].GroupName != emptyName || plan.Skipped[1].Reason != "empty group" {
		t.Errorf("unexpected skip: %+v", plan.Skipped[1])
	}

	override := s.plan(t, PlanOptions{Identity: validate.IdentityUsername, IgnoreMemberIssues: true})
	if len(override.Targets) != 2 || len(override.Skipped) != 1 {
		t.Fatalf("override plan: targets=%d skipped=%+v", len(override.Targets), override.Skipped)
	}

	res := Run(context.Background(), newFake(), plan, Create, RunOptions{})
	if res.OK() || len(res.SkippedGroups) != 2 || res.Succeeded != 1 {
		t.Fatalf("planned skips must be reported: %+v", res)
	}
}

func TestPlanEmailIdentityCollaborators(t *testing.T) {
	s := newScenario(t, "Team 1")
	plan := s.plan(t, PlanOptions{Identity: validate.IdentityEmail})
	c := plan.Targets[0].Spec.Collaborators
	if len(c) != 1 || c[0].Username != "" || c[0].Email != "team1@x.edu" {
		t.Errorf("collaborators = %+v", c)
	}
}

func TestRunRespectsConcurrency(t *testing.T) {
	s := newScenario(t, "A", "B", "C", "D", "E", "F")
	plan := s.plan(t, PlanOptions{})

	fake := newFake()
	fake.delay = 20 * time.Millisecond
	var calls int64
	res := Run(context.Background(), fake, plan, Create, RunOptions{
		Concurrency: 2,
		OnProgress:  func(done, total int, _ string) { atomic.AddInt64(&calls, 1) },
	})
	if res.Succeeded != 6 {
		t.Fatalf("succeeded = %d", res.Succeeded)
	}
	if peak := atomic.LoadInt32(&fake.maxSeen); peak > 2 {
		t.Errorf("max in flight = %d, want <= 2", peak)
	}
	if calls != 6 {
		t.Errorf("progress calls = %d, want 6", calls)
	}
}

func TestRunCancelled(t *testing.T) {
	s := newScenario(t, "A", "B", "C")
	plan := s.plan(t, PlanOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Run(ctx, newFake(), plan, Create, RunOptions{})
	if res.Succeeded != 0 || len(res.SkippedGroups) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, sk := range res.SkippedGroups {
		if sk.Reason != "cancelled" {
			t.Errorf("reason = %q, want cancelled", sk.Reason)
		}
	}
}

func TestParseOperation(t *testing.T) {
	if op, err := ParseOperation("Create"); err != nil || op != Create {
		t.Errorf("ParseOperation = %q, %v", op, err)
	}
	if _, err := ParseOperation("move"); err == nil {
		t.Error("expected error")
	}
}

func TestPlanSkipsEmptyRepoName(t *testing.T) {
	s := newScenario(t, "Team 1", "数学")
	s.a.RepoNameTemplate = "{group}"

	plan := s.plan(t, PlanOptions{Identity: validate.IdentityUsername})
	if len(plan.Targets) != 1 || plan.Targets[0].RepoName != "team-1" {
		t.Fatalf("targets = %+v", plan.Targets)
	}
	if len(plan.Skipped) != 1 || plan.Skipped[0].GroupName != "数学" || plan.Skipped[0].Reason != "empty repository name" {
		t.Fatalf("skipped = %+v", plan.Skipped)
	}

	// Without validation results the plan still refuses an empty name.
	plan = NewPlan(s.r, s.a, validate.Result{}, PlanOptions{})
	for _, tg := range plan.Targets {
		if tg.RepoName == "" {
			t.Fatalf("planned a target with an empty name: %+v", tg)
		}
	}
}
