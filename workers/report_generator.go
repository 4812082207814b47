package workers

import (
	"context"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"

	"github.com/veralens/veralensbackend/analysis"
	"github.com/veralens/veralensbackend/models"
	"github.com/veralens/veralensbackend/reports"
	"github.com/veralens/veralensbackend/repository"
)

type ReportResult struct {
	Filename string
	Err      error
}

type ReportJob struct {
	SessionUUID string
	Session     *models.Session
	Results     []analysis.Result
	Reply       chan ReportResult // buffered; receives exactly one result
}

// ReportGenerator renders report PDFs on a bounded worker pool so a burst of
// report requests cannot fan out into unbounded upstream image fetches.
type ReportGenerator struct {
	JobQueue chan ReportJob
	Builder  *reports.Builder
	Repo     repository.AnalysisRepositoryInterface
	Wg       sync.WaitGroup
	StopChan chan struct{}
}

func NewReportGenerator(builder *reports.Builder, repo repository.AnalysisRepositoryInterface, queueSize, numWorkers int) *ReportGenerator {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 50
	}

	gen := &ReportGenerator{
		JobQueue: make(chan ReportJob, queueSize),
		Builder:  builder,
		Repo:     repo,
		StopChan: make(chan struct{}),
	}

	gen.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go gen.worker(i)
	}
	log.Printf("started %d report worker(s) with queue size %d", numWorkers, queueSize)

	return gen
}

func (rg *ReportGenerator) worker(id int) {
	defer rg.Wg.Done()
	log.Printf("report worker %d started", id)
	for {
		select {
		case job, ok := <-rg.JobQueue:
			if !ok {
				log.Printf("report worker %d stopping: job queue closed", id)
				return
			}
			log.Printf("worker %d generating report for session: %s", id, job.SessionUUID)
			rg.processJob(job)

		case <-rg.StopChan:
			log.Printf("report worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (rg *ReportGenerator) processJob(job ReportJob) {
	filename, err := rg.Builder.Build(context.Background(), job.SessionUUID, job.Session, job.Results)
	if err != nil {
		log.Printf("ERROR generating report for session %s: %v", job.SessionUUID, err)
		job.Reply <- ReportResult{Err: err}
		return
	}

	if rg.Repo != nil {
		if err := rg.Repo.SetReportFilename(job.SessionUUID, filename); err != nil && err != gorm.ErrRecordNotFound {
			// the artifact exists either way; the history link is best effort
			log.Printf("ERROR recording report filename for session %s: %v", job.SessionUUID, err)
		}
	}

	job.Reply <- ReportResult{Filename: filename}
}

// Generate enqueues a report job and waits for the artifact (or ctx expiry).
func (rg *ReportGenerator) Generate(ctx context.Context, sessionUUID string, session *models.Session, results []analysis.Result) (string, error) {
	job := ReportJob{
		SessionUUID: sessionUUID,
		Session:     session,
		Results:     results,
		Reply:       make(chan ReportResult, 1),
	}

	select {
	case rg.JobQueue <- job:
	default:
		return "", fmt.Errorf("report queue is full")
	}

	select {
	case result := <-job.Reply:
		return result.Filename, result.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (rg *ReportGenerator) Stop() {
	log.Println("stopping report generator...")
	close(rg.StopChan)
	rg.Wg.Wait()
	log.Println("all report workers stopped")
}
