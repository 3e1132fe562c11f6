package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/config"
	"github.com/repo-edu/repo-edu-sub001/internal/db"
	"github.com/repo-edu/repo-edu-sub001/internal/history"
	"github.com/repo-edu/repo-edu-sub001/internal/reconcile"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/storage"
	"github.com/repo-edu/repo-edu-sub001/internal/style"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

// app bundles what most commands need: configuration, a logger and the
// roster store for the active profile.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	rosters *storage.Manager
	profile string
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `redu init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()
	profile := profileFlag
	if profile == "" {
		profile = cfg.Profile
	}
	if profile == "" {
		profile = config.DefaultProfile
	}
	if !storage.ValidProfile(profile) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidProfile, profile)
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		rosters: storage.NewManager(cfg.DataDir, logger),
		profile: profile,
	}, nil
}

func (a *app) load() (*roster.Roster, error) {
	return a.rosters.Load(a.profile)
}

// update applies fn to the stored roster under the profile lock.
func (a *app) update(fn func(*roster.Roster) error) error {
	return a.rosters.Update(a.profile, fn)
}

func (a *app) updateOrCreate(fn func(*roster.Roster) error) error {
	return a.rosters.UpdateOrCreate(a.profile, fn)
}

// openHistory opens the run-history database. Callers close it.
func (a *app) openHistory() (*db.DB, *history.Store, error) {
	database, err := db.Open(a.cfg.HistoryPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening history: %w", err)
	}
	return database, history.NewStore(database), nil
}

// recordImport stores an import summary. History is best effort: a failure
// is logged and the import stands.
func (a *app) recordImport(ctx context.Context, source history.Source, detail string, sum reconcile.Summary) {
	database, store, err := a.openHistory()
	if err != nil {
		a.logger.Warn("history unavailable", "error", err)
		return
	}
	defer database.Close()
	if _, err := store.RecordImport(ctx, a.profile, source, detail, sum); err != nil {
		a.logger.Warn("recording import failed", "error", err)
	}
}

func (a *app) validateOptions() validate.Options {
	return validate.Options{Identity: a.cfg.Identity(), DefaultTemplate: a.cfg.RepoNameTemplate}
}

func printSummary(w io.Writer, sum reconcile.Summary) {
	fmt.Fprintf(w, "%s %d added, %d updated, %d unchanged", style.SuccessPrefix, sum.Added, sum.Updated, sum.Unchanged)
	if sum.MissingEmail > 0 {
		fmt.Fprintf(w, ", %s", style.Warning.Render(fmt.Sprintf("%d skipped without email", sum.MissingEmail)))
	}
	fmt.Fprintln(w)
}

func printMissingEmail(w io.Writer, res reconcile.ImportResult) {
	for _, rec := range res.Records {
		if rec.Outcome == reconcile.MissingEmail {
			name := rec.Name
			if name == "" {
				name = fmt.Sprintf("record %d", rec.Index+1)
			}
			fmt.Fprintf(w, "  %s %s has no email\n", style.WarningPrefix, name)
		}
	}
}

func printGroupSetResult(w io.Writer, names map[string]string, res reconcile.GroupSetResult) {
	name, ok := names[res.GroupSetID]
	if !ok {
		name = res.GroupSetID
	}
	verb := "updated"
	if res.Created {
		verb = "created"
	}
	fmt.Fprintf(w, "%s group set %s %s: %d groups added, %d updated, %d unchanged\n",
		style.SuccessPrefix, style.Bold.Render(name), verb,
		res.Summary.GroupsAdded, res.Summary.GroupsUpdated, res.Summary.GroupsUnchanged)
	for _, u := range res.Unresolved {
		fmt.Fprintf(w, "  %s %s: no member matches %s\n", style.WarningPrefix, u.Group, u.Ref)
	}
}

// groupSetNames maps group set IDs to names so results can be printed
// after the roster lock is released.
func groupSetNames(r *roster.Roster) map[string]string {
	names := make(map[string]string, len(r.GroupSets))
	for _, gs := range r.GroupSets {
		names[gs.ID] = gs.Name
	}
	return names
}

// printIssues renders a validation result. It returns true when the
// result has blocking issues.
func printIssues(w io.Writer, r *roster.Roster, res validate.Result) bool {
	if len(res.Issues) == 0 {
		fmt.Fprintf(w, "%s no issues\n", style.SuccessPrefix)
		return false
	}
	for _, is := range res.Issues {
		prefix := style.ErrorPrefix
		if !is.Blocking() {
			prefix = style.WarningPrefix
		}
		fmt.Fprintf(w, "%s %s\n", prefix, is.Message(r))
	}
	blocking := res.HasBlockingIssues()
	if blocking {
		fmt.Fprintln(w, style.Error.Render(fmt.Sprintf("%d issues, blocking", len(res.Issues))))
	} else {
		fmt.Fprintln(w, style.Dim.Render(fmt.Sprintf("%d advisory issues", len(res.Issues))))
	}
	return blocking
}

// findMember resolves a member by ID or email.
func findMember(r *roster.Roster, key string) (*roster.Member, error) {
	if m, _, ok := r.FindMember(key); ok {
		return m, nil
	}
	email := strings.ToLower(strings.TrimSpace(key))
	for _, role := range []roster.Role{roster.RoleStudent, roster.RoleStaff} {
		list := r.Members(role)
		for i := range list {
			if list[i].Email == email {
				return &list[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", roster.ErrMemberNotFound, key)
}
