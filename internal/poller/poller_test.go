package poller

import (
	"testing"

	"github.com/tinyreactor/tinyreactor/internal/channel"
)

type noopLoop struct{}

func (noopLoop) UpdateChannel(*channel.Channel) {}
func (noopLoop) RemoveChannel(*channel.Channel) {}

func TestDecideNewChannelWithNoInterestIsNoop(t *testing.T) {
	ch := channel.New(noopLoop{}, 3)
	if got := decide(ch); got != actionNone {
		t.Fatalf("decide() = %v, want actionNone", got)
	}
}

func TestDecideNewChannelWithInterestIsAdd(t *testing.T) {
	ch := channel.New(noopLoop{}, 3)
	ch.EnableReading()
	if got := decide(ch); got != actionAdd {
		t.Fatalf("decide() = %v, want actionAdd", got)
	}
}

func TestDecideAddedChannelEmptiedIsDelete(t *testing.T) {
	ch := channel.New(noopLoop{}, 3)
	ch.EnableReading()
	ch.SetState(channel.StateAdded)
	ch.DisableAll()
	if got := decide(ch); got != actionDelete {
		t.Fatalf("decide() = %v, want actionDelete", got)
	}
}

func TestDecideAddedChannelStillInterestedIsModify(t *testing.T) {
	ch := channel.New(noopLoop{}, 3)
	ch.EnableReading()
	ch.SetState(channel.StateAdded)
	ch.EnableWriting()
	if got := decide(ch); got != actionModify {
		t.Fatalf("decide() = %v, want actionModify", got)
	}
}

func TestGrowEventsDoublesWhenFull(t *testing.T) {
	events := make([]int, 4)
	grown := growEvents(events, 4)
	if len(grown) != 8 {
		t.Fatalf("len(grown) = %d, want 8", len(grown))
	}
}

func TestGrowEventsKeepsSizeWhenNotFull(t *testing.T) {
	events := make([]int, 4)
	same := growEvents(events, 2)
	if len(same) != 4 {
		t.Fatalf("len(same) = %d, want 4", len(same))
	}
}
