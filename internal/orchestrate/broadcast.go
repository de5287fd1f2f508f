// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"sync"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// subscriberBuffer is the per-subscriber channel capacity. A full buffer
// drops the oldest pending snapshot: consumers tolerate missed intermediate
// updates but always eventually see the terminal one.
const subscriberBuffer = 16

// broadcaster fans job snapshots out from the single orchestrator producer
// to any number of consumers.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan *types.ResearchJob
	nextID int
	final  *types.ResearchJob
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan *types.ResearchJob)}
}

// subscribe registers a consumer. Subscribing after the run finished yields
// a channel pre-loaded with the terminal snapshot and then closed, so late
// consumers still observe the outcome.
func (b *broadcaster) subscribe() <-chan *types.ResearchJob {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *types.ResearchJob, subscriberBuffer)
	if b.closed {
		if b.final != nil {
			ch <- b.final
		}
		close(ch)
		return ch
	}
	b.subs[b.nextID] = ch
	b.nextID++
	return ch
}

// publish delivers a snapshot to every subscriber, dropping the oldest
// pending snapshot of any subscriber that is full.
func (b *broadcaster) publish(j *types.ResearchJob) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- j:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- j:
			default:
			}
		}
	}
}

// finish publishes the terminal snapshot and closes every subscriber
// channel. Delivery of the terminal snapshot is guaranteed: the buffer is
// drained until the send succeeds.
func (b *broadcaster) finish(j *types.ResearchJob) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.final = j
	b.closed = true
	for id, ch := range b.subs {
		for {
			select {
			case ch <- j:
			default:
				select {
				case <-ch:
					continue
				default:
				}
			}
			break
		}
		close(ch)
		delete(b.subs, id)
	}
}
