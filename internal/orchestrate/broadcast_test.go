// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"testing"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func TestBroadcasterDropsOldestWhenFull(t *testing.T) {
	bc := newBroadcaster()
	ch := bc.subscribe()

	// Overfill the buffer, then finish. The slow consumer must still see
	// the terminal snapshot as its last event.
	for i := 0; i < subscriberBuffer*3; i++ {
		bc.publish(&types.ResearchJob{Progress: i})
	}
	bc.finish(&types.ResearchJob{Status: types.StatusCompleted, Progress: 100})

	var last *types.ResearchJob
	n := 0
	for snap := range ch {
		last = snap
		n++
	}
	if n > subscriberBuffer {
		t.Errorf("consumer received %d snapshots, buffer is %d", n, subscriberBuffer)
	}
	if last == nil || last.Status != types.StatusCompleted {
		t.Fatalf("last snapshot = %+v, want the terminal one", last)
	}
}

func TestBroadcasterPublishAfterFinishIgnored(t *testing.T) {
	bc := newBroadcaster()
	ch := bc.subscribe()
	bc.finish(&types.ResearchJob{Status: types.StatusFailed})
	bc.publish(&types.ResearchJob{Status: types.StatusPending})

	var last *types.ResearchJob
	for snap := range ch {
		last = snap
	}
	if last.Status != types.StatusFailed {
		t.Errorf("Status = %q, want failed", last.Status)
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	bc := newBroadcaster()
	a := bc.subscribe()
	b := bc.subscribe()
	bc.finish(&types.ResearchJob{Status: types.StatusCompleted})

	for _, ch := range []<-chan *types.ResearchJob{a, b} {
		var last *types.ResearchJob
		for snap := range ch {
			last = snap
		}
		if last == nil || last.Status != types.StatusCompleted {
			t.Errorf("subscriber missed terminal snapshot: %+v", last)
		}
	}
}
