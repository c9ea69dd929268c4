package responder

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestSleepFloor(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{-time.Second, 0},
		{0, 0},
		{500 * time.Millisecond, 500 * time.Millisecond},
		{5 * time.Second, time.Second},
	}

	for _, c := range cases {
		if got := sleepFloor(c.in); got != c.want {
			t.Errorf("sleepFloor(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestIsClosedError(t *testing.T) {
	closed := &net.OpError{Op: "read", Err: errors.New("use of closed network connection")}
	if !isClosedError(closed) {
		t.Error("expected a closed-connection OpError to be recognized")
	}

	other := &net.OpError{Op: "read", Err: errors.New("connection refused")}
	if isClosedError(other) {
		t.Error("expected an unrelated OpError to not be recognized as closed")
	}

	if isClosedError(errors.New("plain error")) {
		t.Error("expected a non-OpError to not be recognized as closed")
	}
}
