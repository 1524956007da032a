package oninterrupt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRunOrder(t *testing.T) {
	var calls []string
	Register(func() { calls = append(calls, "first") })
	unregister := Register(func() { calls = append(calls, "unregistered") })
	Register(func() { calls = append(calls, "last") })
	unregister()

	run()
	if diff := cmp.Diff([]string{"last", "first"}, calls); diff != "" {
		t.Errorf("handlers: diff (-want +got):\n%s", diff)
	}

	// Handlers run at most once.
	run()
	if got, want := len(calls), 2; got != want {
		t.Errorf("handlers ran again: %d calls, want %d", got, want)
	}
}
