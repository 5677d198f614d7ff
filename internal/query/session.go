package query

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionState is the session-status automaton handle_graph_request
// dispatches on in one-graph-tx-handler/src/lib.rs: NoTx for an
// implicit single-step auto-commit, OpenNewTx/ContinueCurrentTx/
// CommitCurrentTx for an explicit multi-step transaction, and
// WaitForCurrentTx when a second writer on the same session races a
// transaction already in progress.
type SessionState uint8

const (
	NoTx SessionState = iota
	OpenNewTx
	ContinueCurrentTx
	CommitCurrentTx
	WaitForCurrentTx
)

func (s SessionState) String() string {
	switch s {
	case NoTx:
		return "NoTx"
	case OpenNewTx:
		return "OpenNewTx"
	case ContinueCurrentTx:
		return "ContinueCurrentTx"
	case CommitCurrentTx:
		return "CommitCurrentTx"
	case WaitForCurrentTx:
		return "WaitForCurrentTx"
	default:
		return "unknown"
	}
}

// defaultMaxReentry bounds how many times Dispatch re-enters itself
// while WaitForCurrentTx, before giving up, when the caller hasn't
// supplied its own bound via NewSessionWithReentryLimit — past this the
// caller's transaction is almost certainly stuck, not merely racing a
// short critical section.
const defaultMaxReentry = 10000

// reentryBackoff is how long each WaitForCurrentTx re-entry sleeps
// before re-checking, so the default bound allows a wait of roughly
// ten seconds.
const reentryBackoff = time.Millisecond

// Session wraps one Driver with one open-transaction slot: only one
// writer per session may hold the write lock at a time (spec scenario:
// a second writer on the SAME session sees WaitForCurrentTx and
// cooperatively retries); readers never block on a session's own
// transaction state, only on the repository's RWMutex itself.
type Session struct {
	driver     *Driver
	maxReentry int

	mu   sync.Mutex
	open bool
}

// NewSession returns a session driving d, with no transaction open,
// using the package default re-entry bound.
func NewSession(d *Driver) *Session {
	return NewSessionWithReentryLimit(d, defaultMaxReentry)
}

// NewSessionWithReentryLimit is NewSession with an explicit
// WaitForCurrentTx re-entry bound, set from internal/config.Config's
// SessionMaxReentry field by the console.
func NewSessionWithReentryLimit(d *Driver, maxReentry int) *Session {
	if maxReentry <= 0 {
		maxReentry = defaultMaxReentry
	}
	return &Session{driver: d, maxReentry: maxReentry}
}

// Begin opens an explicit, multi-step transaction: it acquires the
// repository's write lock up front and holds it across every
// subsequent Dispatch call until Commit. If another goroutine on this
// same Session already has a transaction open, Begin waits
// (WaitForCurrentTx) until it commits, and returns an error only once
// the re-entry bound is exceeded.
func (s *Session) Begin(ctx context.Context) error {
	var res Result
	return s.transitionRun(ctx, true, false, nil, &res)
}

// Commit runs steps (if any) as the final step of the current
// transaction, then releases the write lock and closes the
// transaction slot.
func (s *Session) Commit(ctx context.Context, steps []Step) (Result, error) {
	var res Result
	err := s.transitionRun(ctx, false, true, steps, &res)
	return res, err
}

// Dispatch runs steps against the session: with no transaction open it
// auto-commits a single implicit step, taking the write lock only if a
// step actually needs it; with a transaction already open (via Begin)
// it continues that transaction without touching the lock again.
func (s *Session) Dispatch(ctx context.Context, steps []Step) (Result, error) {
	var res Result
	err := s.transitionRun(ctx, false, false, steps, &res)
	return res, err
}

// transitionRun is handle_graph_request generalized to Go: it computes
// this call's SessionState and acts on it, re-entering cooperatively on
// WaitForCurrentTx rather than blocking, per spec.md's "the handler
// MUST bound re-entry depth and yield to allow other sessions to
// progress".
func (s *Session) transitionRun(ctx context.Context, begin, commit bool, steps []Step, res *Result) error {
	for attempt := 0; ; attempt++ {
		if attempt > s.maxReentry {
			return fmt.Errorf("query: session exceeded re-entry bound waiting for current transaction")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		switch s.status(begin, commit) {
		case OpenNewTx:
			s.driver.repo.Lock()
			s.setOpen(true)
			r, err := s.driver.Execute(ctx, steps)
			*res = r
			return err
		case ContinueCurrentTx:
			r, err := s.driver.Execute(ctx, steps)
			*res = r
			return err
		case CommitCurrentTx:
			r, err := s.driver.Execute(ctx, steps)
			*res = r
			s.setOpen(false)
			s.driver.repo.Unlock()
			return err
		case WaitForCurrentTx:
			time.Sleep(reentryBackoff)
			continue
		default: // NoTx
			write := needsWriteLock(steps)
			if write {
				s.driver.repo.Lock()
			} else {
				s.driver.repo.RLock()
			}
			r, err := s.driver.Execute(ctx, steps)
			if write {
				s.driver.repo.Unlock()
			} else {
				s.driver.repo.RUnlock()
			}
			*res = r
			return err
		}
	}
}

// status computes this dispatch's SessionState without side effects;
// transitionRun is the only caller that then acts on the held lock.
func (s *Session) status(begin, commit bool) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case commit && s.open:
		return CommitCurrentTx
	case s.open && !begin:
		return ContinueCurrentTx
	case begin && !s.open:
		return OpenNewTx
	case begin && s.open:
		return WaitForCurrentTx
	default:
		return NoTx
	}
}

func (s *Session) setOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}
