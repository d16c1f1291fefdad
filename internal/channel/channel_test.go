package channel

import (
	"testing"
	"time"
)

type fakeLoop struct {
	updates []*Channel
	removes []*Channel
}

func (f *fakeLoop) UpdateChannel(ch *Channel) { f.updates = append(f.updates, ch) }
func (f *fakeLoop) RemoveChannel(ch *Channel)  { f.removes = append(f.removes, ch) }

type fakeTie struct{ alive bool }

func (t *fakeTie) Alive() bool { return t.alive }

func TestEnableReadingPushesUpdate(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	ch.EnableReading()

	if !ch.IsReading() {
		t.Fatal("IsReading() = false after EnableReading")
	}
	if len(l.updates) != 1 {
		t.Fatalf("UpdateChannel called %d times, want 1", len(l.updates))
	}
}

func TestDisableAllClearsInterest(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)
	ch.EnableReading()
	ch.EnableWriting()

	ch.DisableAll()

	if !ch.IsNoneEvent() {
		t.Fatal("IsNoneEvent() = false after DisableAll")
	}
}

func TestRemoveRoutesToLoop(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	ch.Remove()

	if len(l.removes) != 1 || l.removes[0] != ch {
		t.Fatalf("RemoveChannel not routed correctly: %v", l.removes)
	}
}

func TestHandleEventDispatchOrder(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	var order []string
	ch.SetCloseCallback(func() { order = append(order, "close") })
	ch.SetErrorCallback(func() { order = append(order, "error") })
	ch.SetReadCallback(func(time.Time) { order = append(order, "read") })
	ch.SetWriteCallback(func() { order = append(order, "write") })

	ch.SetRevents(EventError | EventRead | EventWrite)
	ch.HandleEvent(time.Now())

	want := []string{"error", "read", "write"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestHandleEventHupWithoutReadFiresClose(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	closed := false
	ch.SetCloseCallback(func() { closed = true })
	ch.SetRevents(EventHup)
	ch.HandleEvent(time.Now())

	if !closed {
		t.Fatal("close callback did not fire on HUP without READ")
	}
}

func TestHandleEventHupWithReadFiresOnlyRead(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	var order []string
	ch.SetCloseCallback(func() { order = append(order, "close") })
	ch.SetReadCallback(func(time.Time) { order = append(order, "read") })

	ch.SetRevents(EventHup | EventRead)
	ch.HandleEvent(time.Now())

	if len(order) != 1 || order[0] != "read" {
		t.Fatalf("order = %v, want [read] (HUP suppressed by READ bit)", order)
	}
}

func TestTiedDeadOwnerSuppressesDispatch(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)
	tie := &fakeTie{alive: false}
	ch.Tie(tie)

	fired := false
	ch.SetReadCallback(func(time.Time) { fired = true })
	ch.SetRevents(EventRead)
	ch.HandleEvent(time.Now())

	if fired {
		t.Fatal("read callback fired despite dead tie")
	}
}

func TestTiedAliveOwnerAllowsDispatch(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)
	tie := &fakeTie{alive: true}
	ch.Tie(tie)

	fired := false
	ch.SetReadCallback(func(time.Time) { fired = true })
	ch.SetRevents(EventRead)
	ch.HandleEvent(time.Now())

	if !fired {
		t.Fatal("read callback did not fire despite alive tie")
	}
}
