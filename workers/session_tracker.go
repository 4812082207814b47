package workers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/veralens/veralensbackend/analysis"
	"github.com/veralens/veralensbackend/models"
	"github.com/veralens/veralensbackend/poller"
	"github.com/veralens/veralensbackend/repository"
	"github.com/veralens/veralensbackend/upstream"
)

// History status markers beyond the upstream status strings.
const (
	StatusTimeout = "timeout"
)

type TrackJob struct {
	SessionUUID string
}

// SessionTracker follows submitted sessions to a terminal status and mirrors
// the outcome into the local history store. The Pending map guarantees at
// most one in-flight poll loop per session UUID.
type SessionTracker struct {
	JobQueue     chan TrackJob
	Repo         repository.AnalysisRepositoryInterface
	Upstream     *upstream.Client
	PollInterval time.Duration
	MaxAttempts  int
	Wg           sync.WaitGroup
	StopChan     chan struct{}
	Pending      map[string]bool
	Mutex        sync.Mutex
}

func NewSessionTracker(repo repository.AnalysisRepositoryInterface, client *upstream.Client, pollInterval time.Duration, maxAttempts, queueSize, numWorkers int) *SessionTracker {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	tracker := &SessionTracker{
		JobQueue:     make(chan TrackJob, queueSize),
		Repo:         repo,
		Upstream:     client,
		PollInterval: pollInterval,
		MaxAttempts:  maxAttempts,
		StopChan:     make(chan struct{}),
		Pending:      make(map[string]bool),
	}

	tracker.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go tracker.worker(i)
	}
	log.Printf("started %d session tracker worker(s) with queue size %d", numWorkers, queueSize)

	return tracker
}

func (st *SessionTracker) worker(id int) {
	defer st.Wg.Done()
	log.Printf("session tracker worker %d started", id)
	for {
		select {
		case job, ok := <-st.JobQueue:
			if !ok {
				log.Printf("session tracker worker %d stopping: job queue closed", id)
				return
			}
			log.Printf("worker %d tracking session: %s", id, job.SessionUUID)
			st.processJob(job)
			st.Mutex.Lock()
			delete(st.Pending, job.SessionUUID)
			st.Mutex.Unlock()

		case <-st.StopChan:
			log.Printf("session tracker worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (st *SessionTracker) processJob(job TrackJob) {
	p := poller.New(st.Upstream.GetStatus)
	if st.PollInterval > 0 {
		p.Interval = st.PollInterval
	}
	if st.MaxAttempts > 0 {
		p.MaxAttempts = st.MaxAttempts
	}

	terminal, err := p.Wait(context.Background(), job.SessionUUID)
	switch {
	case errors.Is(err, poller.ErrTimeout):
		st.setResult(job.SessionUUID, StatusTimeout, nil, nil, "", "processing timeout exceeded")
		return
	case errors.Is(err, poller.ErrProcessingFailed):
		st.setResult(job.SessionUUID, string(models.StatusFailed), nil, nil, "", "processing failed")
		return
	case err != nil:
		log.Printf("ERROR polling session %s: %v", job.SessionUUID, err)
		st.setResult(job.SessionUUID, string(models.StatusFailed), nil, nil, "", "status polling failed")
		return
	}

	session, _, err := st.Upstream.GetSession(context.Background(), job.SessionUUID)
	if err != nil {
		log.Printf("ERROR fetching session info for %s after terminal status: %v", job.SessionUUID, err)
		st.setResult(job.SessionUUID, string(terminal), nil, nil, "", "failed to fetch session info")
		return
	}

	results := analysis.Format(session)
	faceCount := len(results)

	var worstFake *float64
	verdictSummary := "No faces detected"
	for i := range results {
		fake := results[i].Ensemble.Fake
		if worstFake == nil || fake > *worstFake {
			worstFake = &fake
			verdictSummary = results[i].Verdict
		}
	}

	st.setResult(job.SessionUUID, string(terminal), &faceCount, worstFake, verdictSummary, "")
	log.Printf("session %s reached %q with %d face(s)", job.SessionUUID, terminal, faceCount)
}

func (st *SessionTracker) setResult(sessionUUID, status string, faceCount *int, worstFake *float64, verdictSummary, errMsg string) {
	if st.Repo == nil {
		return
	}
	if err := st.Repo.SetResult(sessionUUID, status, faceCount, worstFake, verdictSummary, errMsg); err != nil {
		log.Printf("ERROR updating history record for session %s: %v", sessionUUID, err)
	}
}

// QueueJob enqueues tracking for a session unless a loop for it is already
// pending or running.
func (st *SessionTracker) QueueJob(job TrackJob) bool {
	st.Mutex.Lock()
	if st.Pending[job.SessionUUID] {
		st.Mutex.Unlock()
		log.Printf("tracking for session %s already pending, skipping queue", job.SessionUUID)
		return false
	}

	st.Pending[job.SessionUUID] = true
	st.Mutex.Unlock()

	select {
	case st.JobQueue <- job:
		log.Printf("queued session tracking for: %s", job.SessionUUID)
		return true
	default:
		log.Printf("WARNING: session tracker queue full, failed to queue job for: %s", job.SessionUUID)
		st.Mutex.Lock()
		delete(st.Pending, job.SessionUUID)
		st.Mutex.Unlock()
		return false
	}
}

func (st *SessionTracker) Stop() {
	log.Println("stopping session tracker...")
	close(st.StopChan)
	st.Wg.Wait()
	log.Println("all session tracker workers stopped")
}
