package validate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

type fixture struct {
	r   *roster.Roster
	set *roster.GroupSet
	a   *roster.Assignment
}

func newFixture(t *testing.T, members ...roster.MemberDraft) *fixture {
	t.Helper()
	r := roster.New()
	for _, d := range members {
		r.AppendMember(roster.RoleStudent, roster.NewMember(d))
	}
	set := r.AddGroupSet("Projects")
	setID := set.ID
	a, err := r.AddAssignment(roster.Assignment{Name: "HW1", GroupSetID: setID, RepoNameTemplate: "{assignment}-{group}"})
	if err != nil {
		t.Fatal(err)
	}
	set, _ = r.GroupSetByID(setID)
	return &fixture{r: r, set: set, a: a}
}

func (f *fixture) id(i int) string { return f.r.Students[i].ID }

func (f *fixture) group(t *testing.T, name string, ids ...string) *roster.Group {
	t.Helper()
	g, err := f.set.AddGroup(name, ids...)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func kindsOf(res Result) []Kind {
	out := make([]Kind, len(res.Issues))
	for i, is := range res.Issues {
		out[i] = is.Kind
	}
	return out
}

func TestAssignmentNoIssues(t *testing.T) {
	f := newFixture(t,
		roster.MemberDraft{Name: "A", Email: "a@x.edu", GitUsername: "a"},
		roster.MemberDraft{Name: "B", Email: "b@x.edu", GitUsername: "b"},
	)
	f.group(t, "Team 1", f.id(0), f.id(1))

	res, err := Assignment(f.r, "HW1", Options{Identity: IdentityUsername})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() || res.HasBlockingIssues() {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
}

func TestAssignmentNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := Assignment(f.r, "nope", Options{})
	if !errors.Is(err, roster.ErrAssignmentNotFound) {
		t.Fatalf("err = %v, want ErrAssignmentNotFound", err)
	}
}

func TestAssignmentMissingGroupSetIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.a.GroupSetID = "missing"
	res, err := Assignment(f.r, f.a.ID, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
}

func TestAssignmentExhaustive(t *testing.T) {
	f := newFixture(t,
		roster.MemberDraft{Name: "A", Email: "a@x.edu", GitUsername: "a"},
		roster.MemberDraft{Name: "B", Email: "b@x.edu", GitUsername: "b"},
		roster.MemberDraft{Name: "C", Email: "c@x.edu", GitUsername: "c"},
	)
	empty := f.group(t, "Empty")
	emptyID := empty.ID
	first := f.group(t, "Team 1", f.id(0))
	firstID := first.ID
	second := f.group(t, "team_1", f.id(0), f.id(1))
	secondID := second.ID
	f.group(t, "Solo", f.id(2))

	res, err := Assignment(f.r, "HW1", Options{Identity: IdentityUsername})
	if err != nil {
		t.Fatal(err)
	}
	if res.Count(EmptyGroup) != 1 || res.Count(StudentInMultipleGroupsInAssignment) != 1 || res.Count(DuplicateRepoNameInAssignment) != 1 {
		t.Fatalf("unexpected issues: %v", kindsOf(res))
	}
	if len(res.Issues) != 3 {
		t.Fatalf("issues = %v, want exactly three", kindsOf(res))
	}

	want := []Kind{EmptyGroup, DuplicateRepoNameInAssignment, StudentInMultipleGroupsInAssignment}
	for i, k := range kindsOf(res) {
		if k != want[i] {
			t.Fatalf("order = %v, want %v", kindsOf(res), want)
		}
	}

	if res.Issues[0].AffectedIDs[0] != emptyID {
		t.Errorf("empty group issue affects %v", res.Issues[0].AffectedIDs)
	}
	dup := res.Issues[1]
	if dup.Context != "hw1-team-1" || len(dup.AffectedIDs) != 2 || dup.AffectedIDs[0] != firstID || dup.AffectedIDs[1] != secondID {
		t.Errorf("unexpected collision issue: %+v", dup)
	}
	multi := res.Issues[2]
	if multi.AffectedIDs[0] != f.id(0) || multi.Context != "Team 1, team_1" {
		t.Errorf("unexpected multi-group issue: %+v", multi)
	}
	if !res.HasBlockingIssues() {
		t.Error("expected blocking issues")
	}
}

func TestAssignmentDuplicateGroupID(t *testing.T) {
	f := newFixture(t, roster.MemberDraft{Name: "A", Email: "a@x.edu", GitUsername: "a"})
	g := *f.group(t, "Team 1", f.id(0))

	groups := []roster.Group{g, g}
	res := AssignmentGroups(f.r, f.a, groups, Options{})
	if len(res.Issues) != 1 || res.Issues[0].Kind != DuplicateGroupIDInAssignment || res.Issues[0].AffectedIDs[0] != g.ID {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
}

func TestAssignmentIdentityChecks(t *testing.T) {
	f := newFixture(t,
		roster.MemberDraft{Name: "NoUser", Email: "a@x.edu"},
		roster.MemberDraft{Name: "Bad", Email: "b@x.edu", GitUsername: "ghost"},
	)
	f.r.Students[1].GitUsernameStatus = roster.GitUsernameInvalid
	f.group(t, "Team 1", f.id(0), f.id(1))

	res, _ := Assignment(f.r, "HW1", Options{Identity: IdentityUsername})
	got := kindsOf(res)
	if len(got) != 2 || got[0] != MissingGitUsername || got[1] != InvalidGitUsername {
		t.Fatalf("username mode issues = %v", got)
	}
	if res.Issues[0].AffectedIDs[0] != f.id(0) || res.Issues[1].AffectedIDs[0] != f.id(1) {
		t.Errorf("unexpected affected IDs: %+v", res.Issues)
	}

	res, _ = Assignment(f.r, "HW1", Options{Identity: IdentityEmail})
	got = kindsOf(res)
	if len(got) != 1 || got[0] != InvalidGitUsername {
		t.Fatalf("email mode issues = %v", got)
	}
}

func TestAssignmentOrphanMember(t *testing.T) {
	f := newFixture(t, roster.MemberDraft{Name: "A", Email: "a@x.edu", GitUsername: "a"})
	f.group(t, "Team 1", f.id(0), "ghost-id")

	res, _ := Assignment(f.r, "HW1", Options{})
	if len(res.Issues) != 1 || res.Issues[0].Kind != OrphanGroupMember {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
	if res.Issues[0].AffectedIDs[0] != "ghost-id" || res.Issues[0].Context != "Team 1" {
		t.Errorf("unexpected orphan issue: %+v", res.Issues[0])
	}
}

func TestAssignmentDeterministic(t *testing.T) {
	f := newFixture(t,
		roster.MemberDraft{Name: "A", Email: "a@x.edu"},
		roster.MemberDraft{Name: "B", Email: "b@x.edu"},
	)
	f.group(t, "X", f.id(0))
	f.group(t, "x", f.id(0), f.id(1))
	f.group(t, "Empty")

	first, _ := Assignment(f.r, "HW1", Options{})
	second, _ := Assignment(f.r, "HW1", Options{})
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("results differ:\n%s\n%s", a, b)
	}
}

func TestRosterChecks(t *testing.T) {
	r := roster.New()
	a := r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "A", Email: "dup@x.edu"}))
	aID := a.ID
	b := r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "B", Email: "DUP@x.edu"}))
	bID := b.ID
	r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "C", Email: "not-an-email"}))
	// Same email as a student is fine for staff.
	r.AppendMember(roster.RoleStaff, roster.NewMember(roster.MemberDraft{Name: "A", Email: "dup@x.edu"}))
	clone := r.Students[0]
	r.AppendMember(roster.RoleStaff, clone)

	res := Roster(r)
	want := []Kind{DuplicateMemberID, DuplicateEmail, DuplicateEmail, InvalidEmail}
	got := kindsOf(res)
	if len(got) != len(want) {
		t.Fatalf("issues = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("issues = %v, want %v", got, want)
		}
	}
	if res.Issues[1].AffectedIDs[0] != aID || res.Issues[1].AffectedIDs[1] != bID {
		t.Errorf("unexpected duplicate email issue: %+v", res.Issues[1])
	}
	if InvalidEmail.Blocking() {
		t.Error("InvalidEmail should be advisory")
	}
}

func TestRosterAdvisoryOnly(t *testing.T) {
	r := roster.New()
	r.AppendMember(roster.RoleStudent, roster.NewMember(roster.MemberDraft{Name: "C", Email: "broken@"}))
	res := Roster(r)
	if res.OK() {
		t.Fatal("expected an issue")
	}
	if res.HasBlockingIssues() {
		t.Error("advisory issues should not block")
	}
}

func TestKindTextRoundTrip(t *testing.T) {
	for k := EmptyGroup; k <= InvalidEmail; k++ {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Kind
		if err := back.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if back != k {
			t.Errorf("%v round-tripped to %v", k, back)
		}
		if k.Title() == "" {
			t.Errorf("%v has no title", k)
		}
	}
	var k Kind
	if err := k.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown code")
	}
}

func TestIssueMessage(t *testing.T) {
	f := newFixture(t, roster.MemberDraft{Name: "Alice", Email: "a@x.edu"})
	g := f.group(t, "Team 1")

	msg := Issue{Kind: EmptyGroup, AffectedIDs: []string{g.ID}}.Message(f.r)
	if !strings.Contains(msg, `"Team 1"`) {
		t.Errorf("message = %q", msg)
	}
	msg = Issue{Kind: MissingGitUsername, AffectedIDs: []string{f.id(0)}}.Message(f.r)
	if msg != "Alice has no git username" {
		t.Errorf("message = %q", msg)
	}
}

func TestParseIdentityMode(t *testing.T) {
	tests := []struct {
		in      string
		want    IdentityMode
		wantErr bool
	}{
		{"", IdentityUsername, false},
		{"Username", IdentityUsername, false},
		{"email", IdentityEmail, false},
		{"ssh", "", true},
	}
	for _, tt := range tests {
		got, err := ParseIdentityMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseIdentityMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestAssignmentEmptyRepoName(t *testing.T) {
	f := newFixture(t, roster.MemberDraft{Name: "A", Email: "a@x.edu", GitUsername: "a"})
	f.a.RepoNameTemplate = "{group}"
	g := f.group(t, "数学", f.id(0))

	res, err := Assignment(f.r, "HW1", Options{Identity: IdentityUsername})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Issues) != 1 || res.Issues[0].Kind != DuplicateRepoNameInAssignment || res.Issues[0].AffectedIDs[0] != g.ID {
		t.Fatalf("issues = %+v, want one repo name issue for %s", res.Issues, g.ID)
	}
	if !res.HasBlockingIssues() {
		t.Error("an empty repository name must block")
	}
	if msg := res.Issues[0].Message(f.r); !strings.Contains(msg, "empty repository name") {
		t.Errorf("message = %q", msg)
	}
}
