// Package verify checks members' git usernames against a platform and
// records the result on the roster.
package verify

import (
	"context"
	"fmt"
	"sync"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

// UserChecker reports whether a platform account exists.
type UserChecker interface {
	UserExists(ctx context.Context, username string) (bool, error)
}

// Result summarizes a verification pass.
type Result struct {
	Verified int `json:"verified"`
	Invalid  int `json:"invalid"`
	// Skipped counts members without a username.
	Skipped int               `json:"skipped"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// GitUsernames checks every member that has a git username and sets its
// status to verified or invalid. Lookup errors leave the status unchanged
// and are reported per username.
func GitUsernames(ctx context.Context, r *roster.Roster, checker UserChecker, concurrency int) Result {
	if concurrency < 1 {
		concurrency = 1
	}

	var targets []*roster.Member
	res := Result{}
	for _, list := range []*[]roster.Member{&r.Students, &r.Staff} {
		for i := range *list {
			m := &(*list)[i]
			if m.GitUsername == "" {
				res.Skipped++
				continue
			}
			targets = append(targets, m)
		}
	}

	type check struct {
		ok  bool
		err error
	}
	checks := make([]check, len(targets))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, m := range targets {
		if ctx.Err() != nil {
			checks[i] = check{err: ctx.Err()}
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, username string) {
			defer wg.Done()
			defer func() { <-sem }()
			ok, err := checker.UserExists(ctx, username)
			checks[i] = check{ok: ok, err: err}
		}(i, m.GitUsername)
	}
	wg.Wait()

	for i, m := range targets {
		c := checks[i]
		switch {
		case c.err != nil:
			if res.Errors == nil {
				res.Errors = map[string]string{}
			}
			res.Errors[m.GitUsername] = fmt.Sprintf("check %s: %v", m.GitUsername, c.err)
		case c.ok:
			m.GitUsernameStatus = roster.GitUsernameVerified
			res.Verified++
		default:
			m.GitUsernameStatus = roster.GitUsernameInvalid
			res.Invalid++
		}
	}
	return res
}
