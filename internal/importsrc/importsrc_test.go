package importsrc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

func TestReadCSVMembers(t *testing.T) {
	input := "\ufeffName,E-mail,Student Number,GitHub,Section\n" +
		"Alice Smith,alice@x.edu,s1,alice,A\n" +
		",,,,\n" +
		"Bob Jones,BOB@x.edu,s2,,\n"
	tbl, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	drafts, rowErrs, err := Members(tbl)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Errorf("row errors = %v", rowErrs)
	}
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2 (blank row skipped)", len(drafts))
	}
	a := drafts[0]
	if a.Name != "Alice Smith" || a.Email != "alice@x.edu" || a.StudentNumber != "s1" || a.GitUsername != "alice" {
		t.Errorf("alice = %+v", a)
	}
	if a.CustomFields["section"] != "A" {
		t.Errorf("custom fields = %v, want section=A", a.CustomFields)
	}
	if drafts[1].CustomFields != nil {
		t.Errorf("empty custom cells should not create a map: %v", drafts[1].CustomFields)
	}
}

func TestReadCSVSemicolon(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("first name;last name;email\nAna;de Vries;ana@x.edu\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	drafts, _, err := Members(tbl)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Name != "Ana de Vries" {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestMembersRoleAndStatus(t *testing.T) {
	tbl := Table{
		Header: []string{"name", "email", "role", "status"},
		Rows: [][]string{
			{"Tina", "t@x.edu", "TA", "active"},
			{"Sam", "s@x.edu", "", "dropped"},
			{"Pat", "p@x.edu", "wizard", "asleep"},
		},
	}
	drafts, rowErrs, err := Members(tbl)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if drafts[0].Role != roster.RoleStaff || drafts[0].Status != roster.StatusActive {
		t.Errorf("tina = %+v", drafts[0])
	}
	if drafts[1].Role != roster.RoleStudent || drafts[1].Status != roster.StatusInactive {
		t.Errorf("sam = %+v", drafts[1])
	}
	if drafts[2].Role != roster.RoleStudent || drafts[2].Status != roster.StatusActive {
		t.Errorf("pat should fall back to defaults: %+v", drafts[2])
	}
	if len(rowErrs) != 2 || rowErrs[0].Row != 4 {
		t.Errorf("row errors = %v, want two on row 4", rowErrs)
	}
}

func TestMembersRequiresColumns(t *testing.T) {
	if _, _, err := Members(Table{Header: []string{"name", "student_id"}}); err == nil {
		t.Error("missing email column should fail")
	}
	if _, _, err := Members(Table{Header: []string{"email"}}); err == nil {
		t.Error("missing name column should fail")
	}
}

func TestGroups(t *testing.T) {
	tbl := Table{
		Header: []string{"Team", "Email"},
		Rows: [][]string{
			{"Team 1", "a@x.edu"},
			{"Team 2", "c@x.edu"},
			{"team 1", "b@x.edu"},
			{"", "orphan@x.edu"},
		},
	}
	set, err := Groups(tbl, "Projects")
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if set.Name != "Projects" || len(set.Groups) != 2 {
		t.Fatalf("set = %+v", set)
	}
	if got := set.Groups[0].MemberEmails; len(got) != 2 || got[1] != "b@x.edu" {
		t.Errorf("team 1 emails = %v", got)
	}
	if _, err := Groups(Table{Header: []string{"email"}}, "x"); err == nil {
		t.Error("missing group column should fail")
	}
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"Name", "Email", "Git Username"},
		{"Alice", "a@x.edu", "alice"},
		{"Bob", "b@x.edu", "bob"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	tbl, err := ReadFile(path, "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	drafts, _, err := Members(tbl)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(drafts) != 2 || drafts[1].GitUsername != "bob" {
		t.Fatalf("drafts = %+v", drafts)
	}

	if _, err := ReadFile(path, "Missing"); err == nil {
		t.Error("unknown sheet should fail")
	}
}

func TestReadFileUnsupported(t *testing.T) {
	if _, err := ReadFile("roster.pdf", ""); err == nil {
		t.Error("pdf should be rejected")
	}
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "sub/b.csv", "sub/c.txt"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("name,email\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ExpandPaths([]string{filepath.Join(dir, "**", "*.csv"), filepath.Join(dir, "a.csv")})
	if err != nil {
		t.Fatalf("ExpandPaths: %v", err)
	}
	want := []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "sub", "b.csv")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := ExpandPaths([]string{filepath.Join(dir, "*.xlsx")}); err == nil {
		t.Error("pattern with no matches should fail")
	}
}
