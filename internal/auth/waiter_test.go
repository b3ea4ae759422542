package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedClassifier returns the scripted states in order, repeating the
// last entry once the script runs out.
type scriptedClassifier struct {
	script []func() (State, error)
	calls  int
}

func (c *scriptedClassifier) Classify(ctx context.Context) (State, error) {
	i := c.calls
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	c.calls++
	return c.script[i]()
}

func stateStep(st State) func() (State, error) {
	return func() (State, error) { return st, nil }
}

// TestWaiterDetectsLogin verifies that Wait returns as soon as the page
// classifies as authenticated.
func TestWaiterDetectsLogin(t *testing.T) {
	cl := &scriptedClassifier{script: []func() (State, error){
		stateStep(Unauthenticated),
		stateStep(Indeterminate),
		stateStep(Authenticated),
	}}
	w := &Waiter{Classifier: cl, Interval: time.Millisecond}

	if err := w.Wait(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Wait returned unexpected error: %v", err)
	}
	if cl.calls != 3 {
		t.Errorf("expected 3 classification checks, got %d", cl.calls)
	}
}

// TestWaiterTimeout verifies that an uncompleted login yields a
// LoginTimeoutError carrying the configured timeout.
func TestWaiterTimeout(t *testing.T) {
	cl := &scriptedClassifier{script: []func() (State, error){
		stateStep(Unauthenticated),
	}}
	w := &Waiter{Classifier: cl, Interval: time.Millisecond}

	timeout := 30 * time.Millisecond
	err := w.Wait(context.Background(), timeout)

	var lte *LoginTimeoutError
	if !errors.As(err, &lte) {
		t.Fatalf("expected LoginTimeoutError, got %v", err)
	}
	if lte.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", lte.Timeout, timeout)
	}
	if lte.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", lte.Elapsed)
	}
}

// TestWaiterCallerCancellation verifies that cancelling the caller's context
// is reported as such and not as a login timeout.
func TestWaiterCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := &scriptedClassifier{script: []func() (State, error){
		func() (State, error) {
			cancel()
			return Unauthenticated, nil
		},
	}}
	w := &Waiter{Classifier: cl, Interval: time.Millisecond}

	err := w.Wait(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestWaiterToleratesClassifyErrors verifies that check failures during an
// OAuth redirect do not abort the wait.
func TestWaiterToleratesClassifyErrors(t *testing.T) {
	boom := errors.New("execution context destroyed")
	cl := &scriptedClassifier{script: []func() (State, error){
		func() (State, error) { return Indeterminate, boom },
		func() (State, error) { return Indeterminate, boom },
		stateStep(Authenticated),
	}}
	w := &Waiter{Classifier: cl, Interval: time.Millisecond}

	if err := w.Wait(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Wait returned unexpected error: %v", err)
	}
	if cl.calls != 3 {
		t.Errorf("expected 3 classification checks, got %d", cl.calls)
	}
}

// TestWaiterReportsProgress verifies that the progress callback fires while
// waiting and sees a plausible remaining budget.
func TestWaiterReportsProgress(t *testing.T) {
	cl := &scriptedClassifier{script: []func() (State, error){
		stateStep(Unauthenticated),
		stateStep(Unauthenticated),
		stateStep(Unauthenticated),
		stateStep(Authenticated),
	}}

	timeout := 5 * time.Second
	var reports int
	w := &Waiter{
		Classifier:    cl,
		Interval:      5 * time.Millisecond,
		ProgressEvery: time.Millisecond,
		Progress: func(elapsed, remaining time.Duration) {
			reports++
			if elapsed < 0 || remaining > timeout {
				t.Errorf("implausible progress: elapsed=%v remaining=%v", elapsed, remaining)
			}
		},
	}

	if err := w.Wait(context.Background(), timeout); err != nil {
		t.Fatalf("Wait returned unexpected error: %v", err)
	}
	if reports == 0 {
		t.Error("expected at least one progress report")
	}
}

// TestLoginTimeoutErrorMessage pins the user-facing message format.
func TestLoginTimeoutErrorMessage(t *testing.T) {
	err := &LoginTimeoutError{Elapsed: 95 * time.Second, Timeout: 2 * time.Minute}
	want := "manual login not completed within 2m0s (waited 1m35s)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestStateString covers the tri-state labels.
func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{Indeterminate, "indeterminate"},
		{Authenticated, "authenticated"},
		{Unauthenticated, "unauthenticated"},
		{State(9), "indeterminate"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
