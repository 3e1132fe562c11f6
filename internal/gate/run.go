package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/repo-edu/repo-edu-sub001/internal/platform"
)

// Provisioner is the part of a platform the gate needs.
type Provisioner interface {
	RepoExists(ctx context.Context, name string) (bool, error)
	CreateRepo(ctx context.Context, spec platform.RepoSpec) (*platform.Repo, error)
	DeleteRepo(ctx context.Context, name string) error
	CloneRepo(ctx context.Context, name, dest string) error
}

// ProgressFunc is called after each target finishes.
type ProgressFunc func(done, total int, repoName string)

// RunOptions tune how a plan is executed.
type RunOptions struct {
	Concurrency int
	// Overwrite deletes and recreates repositories that already exist.
	Overwrite bool
	// CloneDir is where Clone places repositories, one directory per repo.
	CloneDir   string
	Logger     *slog.Logger
	OnProgress ProgressFunc
}

// Status is the outcome of one target.
type Status string

const (
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
	Skipped   Status = "skipped"
)

// Outcome records what happened to one group.
type Outcome struct {
	GroupName string `json:"group_name"`
	RepoName  string `json:"repo_name,omitempty"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
}

// RepoError is a failed attempt on one repository.
type RepoError struct {
	RepoName string `json:"repo_name"`
	Message  string `json:"message"`
}

// Result aggregates a run.
type Result struct {
	Operation     Operation      `json:"operation"`
	Assignment    string         `json:"assignment"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	SkippedGroups []SkippedGroup `json:"skipped_groups"`
	Errors        []RepoError    `json:"errors"`
	Outcomes      []Outcome      `json:"outcomes"`
}

// OK reports whether every group succeeded. Skips count against it.
func (r *Result) OK() bool {
	return r.Failed == 0 && len(r.SkippedGroups) == 0
}

// Run executes op for every target of plan on p. Targets run concurrently
// up to opts.Concurrency; one failure never stops the others. Once ctx is
// cancelled no further targets start, but targets already started finish.
func Run(ctx context.Context, p Provisioner, plan Plan, op Operation, opts RunOptions) *Result {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	total := len(plan.Targets)
	outcomes := make([]Outcome, total)
	sem := make(chan struct{}, concurrency)
	var processed int64
	var wg sync.WaitGroup

	report := func(name string) {
		n := atomic.AddInt64(&processed, 1)
		if opts.OnProgress != nil {
			opts.OnProgress(int(n), total, name)
		}
	}

	for i, t := range plan.Targets {
		if ctx.Err() != nil {
			outcomes[i] = Outcome{GroupName: t.GroupName, RepoName: t.RepoName, Status: Skipped, Message: "cancelled"}
			report(t.RepoName)
			continue
		}
		select {
		case <-ctx.Done():
			outcomes[i] = Outcome{GroupName: t.GroupName, RepoName: t.RepoName, Status: Skipped, Message: "cancelled"}
			report(t.RepoName)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			defer func() { <-sem }()

			// A started attempt runs to completion.
			o := attempt(context.WithoutCancel(ctx), p, t, op, opts)
			outcomes[i] = o
			logger.Debug("repository operation finished",
				"operation", op, "repo", t.RepoName, "group", t.GroupName, "status", o.Status, "message", o.Message)
			report(t.RepoName)
		}(i, t)
	}
	wg.Wait()

	res := &Result{
		Operation:     op,
		Assignment:    plan.Assignment,
		SkippedGroups: append([]SkippedGroup{}, plan.Skipped...),
		Errors:        []RepoError{},
		Outcomes:      make([]Outcome, 0, len(plan.Skipped)+total),
	}
	for _, s := range plan.Skipped {
		res.Outcomes = append(res.Outcomes, Outcome{GroupName: s.GroupName, Status: Skipped, Message: s.Reason})
	}
	for _, o := range outcomes {
		res.Outcomes = append(res.Outcomes, o)
		switch o.Status {
		case Succeeded:
			res.Succeeded++
		case Failed:
			res.Failed++
			res.Errors = append(res.Errors, RepoError{RepoName: o.RepoName, Message: o.Message})
		case Skipped:
			res.SkippedGroups = append(res.SkippedGroups, SkippedGroup{GroupName: o.GroupName, Reason: o.Message})
		}
	}
	logger.Info("repository operation complete",
		"operation", op, "assignment", plan.Assignment,
		"succeeded", res.Succeeded, "failed", res.Failed, "skipped", len(res.SkippedGroups))
	return res
}

func attempt(ctx context.Context, p Provisioner, t Target, op Operation, opts RunOptions) Outcome {
	out := Outcome{GroupName: t.GroupName, RepoName: t.RepoName}
	fail := func(err error) Outcome {
		out.Status = Failed
		out.Message = err.Error()
		return out
	}
	skip := func(reason string) Outcome {
		out.Status = Skipped
		out.Message = reason
		return out
	}

	exists, err := p.RepoExists(ctx, t.RepoName)
	if err != nil {
		return fail(fmt.Errorf("check repository: %w", err))
	}

	switch op {
	case Create:
		if exists {
			if !opts.Overwrite {
				return skip("repository already exists")
			}
			if err := p.DeleteRepo(ctx, t.RepoName); err != nil {
				return fail(fmt.Errorf("delete for overwrite: %w", err))
			}
		}
		if _, err := p.CreateRepo(ctx, t.Spec); err != nil {
			if errors.Is(err, platform.ErrRepoExists) {
				return skip("repository already exists")
			}
			return fail(err)
		}
	case Clone:
		if !exists {
			return skip("repository does not exist")
		}
		dest := filepath.Join(opts.CloneDir, t.RepoName)
		if _, err := os.Stat(dest); err == nil {
			return skip("already cloned")
		}
		if err := p.CloneRepo(ctx, t.RepoName, dest); err != nil {
			return fail(err)
		}
	case Delete:
		if !exists {
			return skip("repository does not exist")
		}
		if err := p.DeleteRepo(ctx, t.RepoName); err != nil {
			if errors.Is(err, platform.ErrRepoNotFound) {
				return skip("repository does not exist")
			}
			return fail(err)
		}
	default:
		return fail(fmt.Errorf("unknown operation %q", op))
	}
	out.Status = Succeeded
	return out
}
