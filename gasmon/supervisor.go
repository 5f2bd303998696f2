package gasmon

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Task is a long running activity. It returns nil once ctx is cancelled and
// an error for anything it cannot recover from.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor runs a set of tasks behind a single fault boundary. The first
// fault stops every task and triggers Reset once.
type Supervisor struct {
	Tasks []Task
	Diag  Diagnostics
	Log   log.FieldLogger

	// Reset performs the device restart. It is called at most once per Run.
	Reset func(cause error)

	once sync.Once
}

// Run blocks until ctx is cancelled or a task faults. It returns the fault,
// or nil after a clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.Tasks {
		t := t
		s.Log.Debugf("starting %s", t.Name)
		g.Go(guard(t.Name, func() error { return t.Run(gctx) }))
	}

	err := g.Wait()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Cause(err) == context.Canceled {
		return nil
	}

	s.once.Do(func() {
		s.Log.Errorf("unhandled fault, resetting: %s", err)
		s.Diag.Logf("fault: %s", err)
		if s.Reset != nil {
			s.Reset(err)
		}
	})
	return err
}

// TaskPanic is the fault reported for a task that panicked.
type TaskPanic struct {
	Task  string
	Value interface{}
	Stack []byte
}

func (p *TaskPanic) Error() string {
	return fmt.Sprintf("%s panicked: %v", p.Task, p.Value)
}

// guard turns a panic in fn into a *TaskPanic and names errors after the task.
func guard(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &TaskPanic{Task: name, Value: r, Stack: debug.Stack()}
			}
		}()
		if err := fn(); err != nil {
			return errors.Wrap(err, name)
		}
		return nil
	}
}
