package sendqueue

import "testing"

func TestOrderingAcrossAdmissionClasses(t *testing.T) {
	q := New(0)
	q.PushBackData([]byte("d1"), nil)
	q.PushBackCommand([]byte("c1"), nil)
	q.PushBackData([]byte("d2"), nil)
	q.PushBackCommand([]byte("c2"), nil)

	var order []string
	for !q.IsEmpty() {
		order = append(order, string(q.Front().Header))
		q.PopFront()
	}

	want := []string{"d1", "c1", "d2", "c2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBoundedDataQueue(t *testing.T) {
	// Property 6: with ipc_max_queue_size = N, the (N+1)-th data push
	// fails with resource-exhausted; command pushes still succeed.
	const n = 3
	q := New(n)
	q.SetSteadyMode(true)

	for i := 0; i < n; i++ {
		if err := q.PushBackData([]byte("d"), nil); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := q.PushBackData([]byte("overflow"), nil); err != ErrResourceExhausted {
		t.Errorf("push n+1: err = %v, want ErrResourceExhausted", err)
	}
	if err := q.PushBackCommand([]byte("c"), nil); err != nil {
		t.Errorf("command push during data overflow: %v", err)
	}
}

func TestSteadyModeOffAllowsGrowth(t *testing.T) {
	q := New(1)
	q.PushBackData([]byte("d1"), nil)
	// steady mode is off by default: growth beyond the reservation is
	// permitted.
	if err := q.PushBackData([]byte("d2"), nil); err != nil {
		t.Errorf("push beyond cap with steady mode off: %v", err)
	}
}

func TestPopFrontOnEmptyIsNoOp(t *testing.T) {
	q := New(0)
	q.PopFront() // must not panic
	if !q.IsEmpty() {
		t.Error("expected queue to remain empty")
	}
}
