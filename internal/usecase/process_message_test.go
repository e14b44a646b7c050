package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRepo struct {
	jobs map[uuid.UUID]*entity.AnalysisJob
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[uuid.UUID]*entity.AnalysisJob{}}
}

func (r *memRepo) Create(_ context.Context, job *entity.AnalysisJob) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, job *entity.AnalysisJob) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.AnalysisJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	cp := *job
	return &cp, nil
}

type fakeStorage struct {
	downloadErr error
	uploadErr   error
	uploaded    []string
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, _ string) error {
	return s.downloadErr
}

func (s *fakeStorage) UploadResult(_ context.Context, objectKey string, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.uploaded = append(s.uploaded, objectKey)
	return nil
}

type fakeStatusPublisher struct {
	messages [][]byte
}

func (p *fakeStatusPublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeStatusPublisher) last(t *testing.T) entity.AnalysisStatusMessage {
	t.Helper()
	require.NotEmpty(t, p.messages)
	var msg entity.AnalysisStatusMessage
	require.NoError(t, json.Unmarshal(p.messages[len(p.messages)-1], &msg))
	return msg
}

type fakeDLQ struct {
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct {
	emails []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.emails = append(n.emails, userEmail)
	return nil
}

type messageFixture struct {
	uc        *ProcessMessageUseCase
	repo      *memRepo
	storage   *fakeStorage
	publisher *fakeStatusPublisher
	dlq       *fakeDLQ
	notifier  *fakeNotifier
}

func newMessageFixture(t *testing.T, storage *fakeStorage, maxRetries int) *messageFixture {
	t.Helper()
	opener := &stubOpener{framesPerVideo: 4}
	exporter := &recordingExporter{}
	analyze := NewAnalyzeVideoUseCase(opener, stubFactory{}, exporter, zap.NewNop(), AnalyzeVideoConfig{
		PoolSize:                2,
		DetectorBackend:         "stub",
		FaceConfidenceThreshold: 0.8,
		EmotionScoreThreshold:   50,
	})

	f := &messageFixture{
		repo:      newMemRepo(),
		storage:   storage,
		publisher: &fakeStatusPublisher{},
		dlq:       &fakeDLQ{},
		notifier:  &fakeNotifier{},
	}
	f.uc = NewProcessMessageUseCase(
		f.repo, f.storage, analyze, f.publisher, f.dlq, f.notifier, zap.NewNop(),
		ProcessMessageConfig{TempDir: t.TempDir(), DefaultFrameStep: 2, MaxRetries: maxRetries},
	)
	return f
}

func rawMessage(t *testing.T, msg entity.AnalysisJobMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestProcessMessageHappyPath(t *testing.T) {
	f := newMessageFixture(t, &fakeStorage{}, 5)
	msg := entity.AnalysisJobMessage{
		JobID:    uuid.New(),
		UserID:   "user-1",
		VideoKey: "user-1/party.mp4",
	}

	err := f.uc.Execute(context.Background(), rawMessage(t, msg))
	require.NoError(t, err)

	job := f.repo.jobs[msg.JobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.NotZero(t, job.AnalysedFrames)

	require.Len(t, f.storage.uploaded, 2)
	assert.Equal(t, "user-1/analysis_"+msg.JobID.String()+".csv", f.storage.uploaded[0])
	assert.Equal(t, "user-1/analysis_"+msg.JobID.String()+".xlsx", f.storage.uploaded[1])

	status := f.publisher.last(t)
	assert.Equal(t, entity.JobStatusCompleted, status.Status)
	assert.Equal(t, msg.JobID, status.JobID)

	assert.Empty(t, f.dlq.reasons)
	assert.Empty(t, f.notifier.emails)
}

func TestProcessMessageMalformedBodyGoesToDLQ(t *testing.T) {
	f := newMessageFixture(t, &fakeStorage{}, 5)

	err := f.uc.Execute(context.Background(), []byte("{not json"))
	require.NoError(t, err, "malformed messages must not be redelivered")

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "unmarshal_error")
	assert.Empty(t, f.repo.jobs)
}

func TestProcessMessageUnopenableVideoIsPermanent(t *testing.T) {
	f := newMessageFixture(t, &fakeStorage{}, 5)
	msg := entity.AnalysisJobMessage{
		JobID:     uuid.New(),
		UserID:    "user-2",
		VideoKey:  "user-2/broken.mov",
		UserEmail: "user-2@example.com",
	}

	err := f.uc.Execute(context.Background(), rawMessage(t, msg))
	require.NoError(t, err, "permanent failures are acked, not redelivered")

	job := f.repo.jobs[msg.JobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusFailed, job.Status)

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "analyse_video")
	assert.Equal(t, []string{"user-2@example.com"}, f.notifier.emails)
	assert.Equal(t, entity.JobStatusFailed, f.publisher.last(t).Status)
}

func TestProcessMessageDownloadFailureIsRetryable(t *testing.T) {
	f := newMessageFixture(t, &fakeStorage{downloadErr: errors.New("connection reset")}, 5)
	msg := entity.AnalysisJobMessage{
		JobID:    uuid.New(),
		UserID:   "user-3",
		VideoKey: "user-3/clip.mp4",
	}

	err := f.uc.Execute(context.Background(), rawMessage(t, msg))
	require.Error(t, err, "retryable failures propagate so the broker redelivers")
	assert.Contains(t, err.Error(), "attempt 1/5")

	assert.Empty(t, f.dlq.reasons)
	assert.Equal(t, entity.JobStatusFailed, f.repo.jobs[msg.JobID].Status)
	assert.True(t, f.repo.jobs[msg.JobID].CanRetry())
}

func TestProcessMessageRetryExhaustionGoesToDLQ(t *testing.T) {
	f := newMessageFixture(t, &fakeStorage{downloadErr: errors.New("connection reset")}, 1)
	msg := entity.AnalysisJobMessage{
		JobID:    uuid.New(),
		UserID:   "user-4",
		VideoKey: "user-4/clip.mp4",
	}

	err := f.uc.Execute(context.Background(), rawMessage(t, msg))
	require.NoError(t, err, "the final attempt is acked after the DLQ publish")

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "download_video")
	assert.False(t, f.repo.jobs[msg.JobID].CanRetry())
}

func TestProcessMessageReusesExistingJobRecord(t *testing.T) {
	f := newMessageFixture(t, &fakeStorage{}, 5)
	msg := entity.AnalysisJobMessage{
		JobID:    uuid.New(),
		UserID:   "user-5",
		VideoKey: "user-5/clip.mp4",
	}

	existing := entity.NewAnalysisJob(msg.UserID, msg.VideoKey, 2, 5)
	existing.ID = msg.JobID
	existing.Attempt = 2
	require.NoError(t, f.repo.Create(context.Background(), existing))

	require.NoError(t, f.uc.Execute(context.Background(), rawMessage(t, msg)))

	// The redelivered message continues the recorded attempt count.
	assert.Equal(t, 3, f.repo.jobs[msg.JobID].Attempt)
	assert.Equal(t, entity.JobStatusCompleted, f.repo.jobs[msg.JobID].Status)
}
