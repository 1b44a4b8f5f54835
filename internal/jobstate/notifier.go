package jobstate

import (
	"sync"

	"github.com/kaili/songforge/internal/domain"
)

// notifier fans job record emissions out to per-job subscriber channels.
// Sends never block: a slow subscriber misses intermediate snapshots and
// catches up on its next poll, which is acceptable because every emission
// carries the full record.
type notifier struct {
	mu   sync.Mutex
	subs map[string]map[int]chan *domain.GenerationJob
	next int
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string]map[int]chan *domain.GenerationJob)}
}

func (n *notifier) subscribe(jobID string) (<-chan *domain.GenerationJob, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan *domain.GenerationJob, 8)
	if n.subs[jobID] == nil {
		n.subs[jobID] = make(map[int]chan *domain.GenerationJob)
	}
	id := n.next
	n.next++
	n.subs[jobID][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if chans, ok := n.subs[jobID]; ok {
			delete(chans, id)
			if len(chans) == 0 {
				delete(n.subs, jobID)
			}
		}
	}
	return ch, cancel
}

func (n *notifier) publish(job *domain.GenerationJob) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[job.JobID] {
		snapshot := *job
		select {
		case ch <- &snapshot:
		default:
		}
	}
}
