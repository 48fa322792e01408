package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/model"
	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/domain/ports/repository"
)

// ---- in-memory job repository with real compare-and-set semantics ----

type memJobRepo struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*model.CustomizationJob

	createErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[int64]*model.CustomizationJob)}
}

func (r *memJobRepo) Create(ctx context.Context, job *model.CustomizationJob) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	job.ID = r.nextID
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, id int64, userID string) (*model.CustomizationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobRepo) FindByTryOnJobID(ctx context.Context, providerJobID string) (*model.CustomizationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if providerJobID != "" && job.ProviderTryOnJobID == providerJobID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) UpdateStatus(ctx context.Context, id int64, expected, next model.JobStatus, fields repository.JobUpdate) (*model.CustomizationJob, bool, error) {
	if !expected.CanTransition(next) {
		return nil, false, domain.ErrInvalidState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if job.Status != expected {
		cp := *job
		return &cp, false, nil
	}
	job.Status = next
	if fields.GeneratedDesignImageURL != nil {
		job.GeneratedDesignImageURL = *fields.GeneratedDesignImageURL
	}
	if fields.GeneratedPreviewImageURL != nil {
		job.GeneratedPreviewImageURL = *fields.GeneratedPreviewImageURL
	}
	if fields.ProviderTryOnJobID != nil {
		job.ProviderTryOnJobID = *fields.ProviderTryOnJobID
	}
	if fields.ResultImageURL != nil {
		job.ResultImageURL = *fields.ResultImageURL
	}
	if fields.FailureReason != nil {
		job.FailureReason = *fields.FailureReason
	}
	cp := *job
	return &cp, true, nil
}

// force sets a job's status directly, simulating a concurrent writer.
func (r *memJobRepo) force(id int64, status model.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].Status = status
}

func (r *memJobRepo) get(id int64) *model.CustomizationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.jobs[id]
	return &cp
}

// ---- blob store fake with per-folder failure injection ----

type fakeBlob struct {
	mu       sync.Mutex
	uploads  []string
	deletes  []string
	failIn   map[string]error
	sequence int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{failIn: make(map[string]error)}
}

func (b *fakeBlob) Upload(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failIn[folder]; ok {
		return "", err
	}
	b.sequence++
	url := fmt.Sprintf("https://cdn/%s/%d_%s", folder, b.sequence, filename)
	b.uploads = append(b.uploads, url)
	return url, nil
}

func (b *fakeBlob) Replace(ctx context.Context, r io.Reader, filename, oldURL, folder string) (string, error) {
	url, err := b.Upload(ctx, r, filename, folder)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.deletes = append(b.deletes, oldURL)
	b.mu.Unlock()
	return url, nil
}

func (b *fakeBlob) Delete(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, url)
	return nil
}

func (b *fakeBlob) uploadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

// ---- design adapter fake ----

type fakeDesign struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	result  *adapter.GenerationResult
	preproc *adapter.PreprocessResult
}

func (d *fakeDesign) Name() string { return "fake-design" }

func (d *fakeDesign) Preprocess(ctx context.Context, image []byte, filename string) (*adapter.PreprocessResult, error) {
	if d.preproc != nil {
		return d.preproc, nil
	}
	return &adapter.PreprocessResult{Usable: true, Reason: "ok"}, nil
}

func (d *fakeDesign) Generate(ctx context.Context, prompt string, sourceImage []byte) (*adapter.GenerationResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.calls
	d.calls++
	if idx < len(d.errs) && d.errs[idx] != nil {
		return nil, d.errs[idx]
	}
	if d.result != nil {
		return d.result, nil
	}
	return &adapter.GenerationResult{Design: []byte("design-bytes")}, nil
}

func (d *fakeDesign) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// ---- try-on adapter fake ----

type fakeTryOn struct {
	mu        sync.Mutex
	submits   int
	polls     int
	submitErr []error
	handle    string
	pollRes   *adapter.TryOnPoll
	pollErr   error

	// onPoll runs during Poll, before the result is returned. Tests use
	// it to interleave a concurrent status change with an in-flight poll.
	onPoll func()
}

func (f *fakeTryOn) Name() string { return "fake-tryon" }

func (f *fakeTryOn) Submit(ctx context.Context, sub adapter.TryOnSubmission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.submits
	f.submits++
	if idx < len(f.submitErr) && f.submitErr[idx] != nil {
		return "", f.submitErr[idx]
	}
	if f.handle == "" {
		f.handle = "handle-1"
	}
	return f.handle, nil
}

func (f *fakeTryOn) Poll(ctx context.Context, providerJobID string) (*adapter.TryOnPoll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.onPoll != nil {
		f.onPoll()
	}
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.pollRes != nil {
		return f.pollRes, nil
	}
	return &adapter.TryOnPoll{Status: model.TryOnStatusProcessing}, nil
}

func (f *fakeTryOn) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeTryOn) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

// ---- status cache and cleaner fakes ----

type memStatusCache struct {
	mu    sync.Mutex
	items map[string]*adapter.TryOnPoll
	puts  int
}

func newMemStatusCache() *memStatusCache {
	return &memStatusCache{items: make(map[string]*adapter.TryOnPoll)}
}

func (c *memStatusCache) Get(ctx context.Context, providerJobID string) (*adapter.TryOnPoll, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[providerJobID], nil
}

func (c *memStatusCache) Put(ctx context.Context, providerJobID string, poll *adapter.TryOnPoll) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.items[providerJobID] = poll
	return nil
}

type fakeCleaner struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeCleaner) ScheduleDelete(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
}

func (f *fakeCleaner) scheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}
