package workers

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veralens/veralensbackend/models"
	"github.com/veralens/veralensbackend/upstream"
)

const trackerTestURL = "http://detector.test"

var trackerTestID = uuid.NewString()

type resultCall struct {
	status         string
	faceCount      *int
	worstFake      *float64
	verdictSummary string
	errorMessage   string
}

// recordingRepo captures SetResult calls so tests can wait for the tracker
// to finish a job.
type recordingRepo struct {
	results chan resultCall
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{results: make(chan resultCall, 10)}
}

func (r *recordingRepo) Create(record *models.AnalysisRecord) error { return nil }
func (r *recordingRepo) GetBySessionUUID(sessionUUID string) (*models.AnalysisRecord, error) {
	return nil, nil
}
func (r *recordingRepo) ListRecent(limit int) ([]models.AnalysisRecord, error) { return nil, nil }
func (r *recordingRepo) UpdateStatus(sessionUUID, status string) error         { return nil }
func (r *recordingRepo) SetReportFilename(sessionUUID, filename string) error  { return nil }

func (r *recordingRepo) SetResult(sessionUUID, status string, faceCount *int, worstFakeScore *float64, verdictSummary, errorMessage string) error {
	r.results <- resultCall{
		status:         status,
		faceCount:      faceCount,
		worstFake:      worstFakeScore,
		verdictSummary: verdictSummary,
		errorMessage:   errorMessage,
	}
	return nil
}

func (r *recordingRepo) waitForResult(t *testing.T) resultCall {
	t.Helper()
	select {
	case call := <-r.results:
		return call
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the tracker to record a result")
		return resultCall{}
	}
}

func newTrackedClient(t *testing.T) *upstream.Client {
	t.Helper()
	client := upstream.New(trackerTestURL)
	httpmock.ActivateNonDefault(client.HTTP)
	httpmock.ActivateNonDefault(client.Storage)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestSessionTrackerRecordsCompletedOutcome(t *testing.T) {
	client := newTrackedClient(t)
	repo := newRecordingRepo()

	var statusCalls int32
	httpmock.RegisterResponder(http.MethodGet, trackerTestURL+"/"+trackerTestID+"/status",
		func(req *http.Request) (*http.Response, error) {
			if atomic.AddInt32(&statusCalls, 1) < 3 {
				return httpmock.NewStringResponse(200, `{"status":"processing"}`), nil
			}
			return httpmock.NewStringResponse(200, `{"status":"completed"}`), nil
		})
	httpmock.RegisterResponder(http.MethodGet, trackerTestURL+"/"+trackerTestID,
		httpmock.NewStringResponder(200, `{"status":"completed","faces":[{"face_path":"/storage/faces/x_0.png","ansamble":0.1},{"face_path":"/storage/faces/x_1.png","ansamble":0.9}]}`))

	tracker := NewSessionTracker(repo, client, time.Millisecond, 10, 10, 1)
	t.Cleanup(tracker.Stop)

	require.True(t, tracker.QueueJob(TrackJob{SessionUUID: trackerTestID}))

	call := repo.waitForResult(t)
	assert.Equal(t, "completed", call.status)
	require.NotNil(t, call.faceCount)
	assert.Equal(t, 2, *call.faceCount)
	require.NotNil(t, call.worstFake)
	assert.InDelta(t, 0.9, *call.worstFake, 1e-9, "worst fake score comes from the lowest-real face")
	assert.Equal(t, "Probably Deepfake", call.verdictSummary)
	assert.Empty(t, call.errorMessage)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&statusCalls), int32(3))
}

func TestSessionTrackerRecordsTimeout(t *testing.T) {
	client := newTrackedClient(t)
	repo := newRecordingRepo()

	httpmock.RegisterResponder(http.MethodGet, trackerTestURL+"/"+trackerTestID+"/status",
		httpmock.NewStringResponder(200, `{"status":"processing"}`))

	tracker := NewSessionTracker(repo, client, time.Millisecond, 3, 10, 1)
	t.Cleanup(tracker.Stop)

	require.True(t, tracker.QueueJob(TrackJob{SessionUUID: trackerTestID}))

	call := repo.waitForResult(t)
	assert.Equal(t, StatusTimeout, call.status)
	assert.Nil(t, call.faceCount)
	assert.Equal(t, "processing timeout exceeded", call.errorMessage)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 3, info["GET "+trackerTestURL+"/"+trackerTestID+"/status"],
		"the tracker must issue exactly the configured number of status checks")
}

func TestSessionTrackerRecordsFailure(t *testing.T) {
	client := newTrackedClient(t)
	repo := newRecordingRepo()

	httpmock.RegisterResponder(http.MethodGet, trackerTestURL+"/"+trackerTestID+"/status",
		httpmock.NewStringResponder(200, `{"status":"failed"}`))

	tracker := NewSessionTracker(repo, client, time.Millisecond, 5, 10, 1)
	t.Cleanup(tracker.Stop)

	require.True(t, tracker.QueueJob(TrackJob{SessionUUID: trackerTestID}))

	call := repo.waitForResult(t)
	assert.Equal(t, string(models.StatusFailed), call.status)
	assert.Equal(t, "processing failed", call.errorMessage)
}

func TestSessionTrackerNoFacesFound(t *testing.T) {
	client := newTrackedClient(t)
	repo := newRecordingRepo()

	httpmock.RegisterResponder(http.MethodGet, trackerTestURL+"/"+trackerTestID+"/status",
		httpmock.NewStringResponder(200, `{"status":"no faces found"}`))
	httpmock.RegisterResponder(http.MethodGet, trackerTestURL+"/"+trackerTestID,
		httpmock.NewStringResponder(200, `{"status":"no faces found","faces":[]}`))

	tracker := NewSessionTracker(repo, client, time.Millisecond, 5, 10, 1)
	t.Cleanup(tracker.Stop)

	require.True(t, tracker.QueueJob(TrackJob{SessionUUID: trackerTestID}))

	call := repo.waitForResult(t)
	assert.Equal(t, string(models.StatusNoFacesFound), call.status)
	require.NotNil(t, call.faceCount)
	assert.Equal(t, 0, *call.faceCount)
	assert.Equal(t, "No faces detected", call.verdictSummary)
}

func TestSessionTrackerDeduplicatesPendingSessions(t *testing.T) {
	client := newTrackedClient(t)
	tracker := NewSessionTracker(newRecordingRepo(), client, time.Millisecond, 5, 10, 1)
	t.Cleanup(tracker.Stop)

	tracker.Mutex.Lock()
	tracker.Pending[trackerTestID] = true
	tracker.Mutex.Unlock()

	assert.False(t, tracker.QueueJob(TrackJob{SessionUUID: trackerTestID}),
		"a session with a pending poll loop must not be queued again")
}
