package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/gate"
	"github.com/repo-edu/repo-edu-sub001/internal/platform"
	"github.com/repo-edu/repo-edu-sub001/internal/progress"
	"github.com/repo-edu/repo-edu-sub001/internal/style"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

type repoFlags struct {
	ignoreIssues bool
	overwrite    bool
	dir          string
	yes          bool
	concurrency  int
	dryRun       bool
}

var repoOpts repoFlags

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Create, clone or delete the repositories of an assignment",
}

func newRepoCmd(op gate.Operation, short string) *cobra.Command {
	c := &cobra.Command{
		Use:   string(op) + " <assignment>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepos(cmd, op, args[0])
		},
	}
	f := c.Flags()
	f.BoolVar(&repoOpts.ignoreIssues, "ignore-issues", false, "proceed despite blocking issues; flagged groups are still skipped")
	f.IntVar(&repoOpts.concurrency, "concurrency", 0, "parallel repository operations (default from config)")
	f.BoolVar(&repoOpts.dryRun, "dry-run", false, "print the plan without touching the platform")
	switch op {
	case gate.Create:
		f.BoolVar(&repoOpts.overwrite, "overwrite", false, "delete and recreate repositories that already exist")
	case gate.Clone:
		f.StringVar(&repoOpts.dir, "dir", ".", "directory to clone into")
	case gate.Delete:
		f.BoolVarP(&repoOpts.yes, "yes", "y", false, "do not ask for confirmation")
	}
	return c
}

func runRepos(cmd *cobra.Command, op gate.Operation, key string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	r, err := a.load()
	if err != nil {
		return err
	}
	asg, err := r.LookupAssignment(key)
	if err != nil {
		return err
	}
	vr, err := validate.Assignment(r, asg.ID, a.validateOptions())
	if err != nil {
		return err
	}
	plan := gate.NewPlan(r, asg, vr, gate.PlanOptions{
		DefaultTemplate:    a.cfg.RepoNameTemplate,
		Private:            a.cfg.Private,
		Identity:           a.cfg.Identity(),
		IgnoreMemberIssues: repoOpts.ignoreIssues,
	})

	out := cmd.OutOrStdout()
	if len(vr.Issues) > 0 {
		printIssues(out, r, vr)
	}
	if repoOpts.dryRun {
		printPlan(out, op, plan)
		return blockingError(vr, repoOpts.ignoreIssues)
	}
	if err := blockingError(vr, repoOpts.ignoreIssues); err != nil {
		return err
	}
	if len(plan.Targets) == 0 {
		printPlan(out, op, plan)
		return &ExitError{Code: 2, Msg: "no groups can proceed"}
	}
	if op == gate.Delete && !repoOpts.yes {
		if err := confirm(fmt.Sprintf("Delete %d repositories of %s", len(plan.Targets), asg.Name)); err != nil {
			return err
		}
	}

	p, err := platform.New(a.cfg.PlatformConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	who, err := p.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("verifying %s credentials: %w", p.Name(), err)
	}
	a.logger.Debug("platform credentials ok", "platform", p.Name(), "user", who.Username)

	concurrency := repoOpts.concurrency
	if concurrency <= 0 {
		concurrency = a.cfg.MaxConcurrency
	}
	reporter := progress.NewReporter(os.Stderr)
	reporter.Start(len(plan.Targets), fmt.Sprintf("%s %s", op, asg.Name))
	res := gate.Run(ctx, p, plan, op, gate.RunOptions{
		Concurrency: concurrency,
		Overwrite:   repoOpts.overwrite,
		CloneDir:    repoOpts.dir,
		Logger:      a.logger,
		OnProgress:  progress.Func(reporter),
	})
	reporter.Finish()

	a.recordOperation(context.WithoutCancel(ctx), p.Name(), res)
	printResult(out, res)
	if !res.OK() {
		return &ExitError{Code: 2}
	}
	return nil
}

// blockingError stops a run before the platform is touched when the
// assignment has blocking issues, unless they are explicitly ignored.
func blockingError(vr validate.Result, ignore bool) error {
	if vr.HasBlockingIssues() && !ignore {
		return &ExitError{Code: 2, Msg: "blocking validation issues; fix the roster or pass --ignore-issues"}
	}
	return nil
}

func (a *app) recordOperation(ctx context.Context, platformName string, res *gate.Result) {
	database, store, err := a.openHistory()
	if err != nil {
		a.logger.Warn("history unavailable", "error", err)
		return
	}
	defer database.Close()
	if _, err := store.RecordOperation(ctx, a.profile, platformName, res); err != nil {
		a.logger.Warn("recording operation failed", "error", err)
	}
}

func printPlan(w io.Writer, op gate.Operation, plan gate.Plan) {
	fmt.Fprintf(w, "%s %s %s: %d repositories\n", style.ArrowPrefix, op, style.Bold.Render(plan.Assignment), len(plan.Targets))
	for _, t := range plan.Targets {
		fmt.Fprintf(w, "  %s %s\n", t.RepoName, style.Dim.Render(t.GroupName))
	}
	for _, s := range plan.Skipped {
		fmt.Fprintf(w, "  %s %s skipped: %s\n", style.WarningPrefix, s.GroupName, s.Reason)
	}
}

func printResult(w io.Writer, res *gate.Result) {
	for _, o := range res.Outcomes {
		switch o.Status {
		case gate.Succeeded:
			fmt.Fprintf(w, "%s %s\n", style.SuccessPrefix, o.RepoName)
		case gate.Failed:
			fmt.Fprintf(w, "%s %s: %s\n", style.ErrorPrefix, o.RepoName, o.Message)
		default:
			fmt.Fprintf(w, "%s %s: %s\n", style.WarningPrefix, o.GroupName, o.Message)
		}
	}
	summary := fmt.Sprintf("%s %s: %d succeeded, %d failed, %d skipped",
		res.Operation, res.Assignment, res.Succeeded, res.Failed, len(res.SkippedGroups))
	if res.OK() {
		fmt.Fprintln(w, style.Success.Render(summary))
	} else {
		fmt.Fprintln(w, style.Error.Render(summary))
	}
}

func init() {
	reposCmd.AddCommand(
		newRepoCmd(gate.Create, "Create one repository per group that passes validation"),
		newRepoCmd(gate.Clone, "Clone the assignment's repositories"),
		newRepoCmd(gate.Delete, "Delete the assignment's repositories"),
	)
	rootCmd.AddCommand(reposCmd)
}
