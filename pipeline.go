package termpix

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"sync/atomic"
)

const (
	// DefaultWorkers is the background encode pool size.
	DefaultWorkers = 2
	// DefaultMaxPending bounds queued encode jobs; beyond it the oldest
	// queued job is dropped in favor of the newest request.
	DefaultMaxPending = 8
)

// JobState describes an async encode job as seen by pollers.
type JobState int

const (
	// JobUnknown means no job or result exists for the key.
	JobUnknown JobState = iota
	// JobPending means the job is queued or running.
	JobPending
	// JobReady means the result has been published to the cache.
	JobReady
	// JobFailed means the job errored; the error is reported once.
	JobFailed
)

// DecodeFunc is the external image decoding collaborator: encoded bytes in,
// pixel grid out. It must be safe for concurrent use; it is only invoked from
// background workers.
type DecodeFunc func([]byte) (image.Image, error)

// DecodeBytes is the default decoder, backed by the standard image registry
// (PNG, JPEG, GIF).
func DecodeBytes(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// RenderRequest asks for one image at one cell area. Either Image (an
// already decoded pixel grid) or Data (bytes for the decoder collaborator)
// must be set. ID is the content identity used for caching and generation
// ordering; callers must change it when the underlying pixels change.
type RenderRequest struct {
	ID    string
	Image image.Image
	Data  []byte

	Cols   int
	Rows   int
	Policy ResizePolicy
}

// JobHandle identifies a submitted encode job. Consumers look results up by
// key; they never own the job, so superseded jobs can be dropped freely.
type JobHandle struct {
	Key        CacheKey
	Generation uint64
}

type job struct {
	key        CacheKey
	generation uint64
	req        RenderRequest
	dropped    atomic.Bool
}

// PipelineOptions configures the async encode pipeline.
type PipelineOptions struct {
	Workers    int
	MaxPending int

	// Decode defaults to DecodeBytes.
	Decode DecodeFunc

	// Resizer supplies upscale and tolerance policy; the per-request policy
	// overrides its Policy field.
	Resizer Resizer

	// Encode carries the protocol knobs (palette size, dither, tmux, image
	// ids) shared by all jobs.
	Encode EncodeOptions
}

// Pipeline offloads decode, resize and encode work to a bounded worker pool
// so the render loop never blocks on them. At most one pending job exists per
// cache key; newer submissions for the same content identity supersede older
// ones by generation number rather than by cancellation.
type Pipeline struct {
	caps    *TerminalCapabilities
	encoder Encoder
	cache   *FrameCache
	opts    PipelineOptions

	jobCh  chan *job
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	pending   map[CacheKey]*job
	failed    map[CacheKey]error
	gens      map[string]uint64
	submitted uint64
	kittyID   uint32
}

// NewPipeline starts the worker pool. The encoder decides the output
// protocol for every job; results land in cache.
func NewPipeline(caps *TerminalCapabilities, encoder Encoder, cache *FrameCache, opts PipelineOptions) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if opts.Decode == nil {
		opts.Decode = DecodeBytes
	}

	p := &Pipeline{
		caps:    caps,
		encoder: encoder,
		cache:   cache,
		opts:    opts,
		jobCh:   make(chan *job, opts.MaxPending),
		stopCh:  make(chan struct{}),
		pending: make(map[CacheKey]*job),
		failed:  make(map[CacheKey]error),
		gens:    make(map[string]uint64),
	}

	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

// Close stops the workers. In-flight jobs finish; queued jobs are abandoned.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
}

// Submit schedules an encode job for the request. A request whose key
// already has a pending job returns that job's handle instead of duplicating
// work. When the queue is full the oldest queued job is dropped unpublished;
// a UI only cares about the latest visible frame.
func (p *Pipeline) Submit(req RenderRequest) (JobHandle, error) {
	key := CacheKey{ID: req.ID, Cols: req.Cols, Rows: req.Rows, Protocol: p.encoder.Protocol()}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return JobHandle{}, ErrPipelineClosed
	}

	if existing, ok := p.pending[key]; ok {
		handle := JobHandle{Key: key, Generation: existing.generation}
		p.mu.Unlock()
		return handle, nil
	}

	p.gens[req.ID]++
	j := &job{key: key, generation: p.gens[req.ID], req: req}
	p.pending[key] = j
	p.submitted++
	delete(p.failed, key)

	// Backpressure: recency beats fairness. If the queue is full, evict the
	// oldest queued job to make room.
	select {
	case p.jobCh <- j:
	default:
		select {
		case old := <-p.jobCh:
			old.dropped.Store(true)
			delete(p.pending, old.key)
		default:
			// Workers drained the queue in between; there is room again.
		}
		// Submissions are serialized by p.mu, so after the eviction above
		// the queue has at least one free slot.
		p.jobCh <- j
	}
	p.mu.Unlock()

	return JobHandle{Key: key, Generation: j.generation}, nil
}

// Poll reports the job state for a key. A failure is reported exactly once,
// then forgotten; the next frame's request retries naturally.
func (p *Pipeline) Poll(key CacheKey) (JobState, error) {
	p.mu.Lock()
	if _, ok := p.pending[key]; ok {
		p.mu.Unlock()
		return JobPending, nil
	}
	if err, ok := p.failed[key]; ok {
		delete(p.failed, key)
		p.mu.Unlock()
		return JobFailed, err
	}
	p.mu.Unlock()

	if _, ok := p.cache.Get(key); ok {
		return JobReady, nil
	}
	return JobUnknown, nil
}

// SubmittedCount returns how many jobs have been accepted, deduplicated
// submissions excluded.
func (p *Pipeline) SubmittedCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitted
}

func (p *Pipeline) loop() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobCh:
			p.run(j)
		case <-p.stopCh:
			return
		}
	}
}

// run executes one job end to end: decode, resize, encode, publish. There is
// no preemptive cancellation; a superseded job finishes and its publish is
// silently discarded by the cache's generation check.
func (p *Pipeline) run(j *job) {
	if j.dropped.Load() {
		return
	}

	img := j.req.Image
	if img == nil {
		decoded, err := p.opts.Decode(j.req.Data)
		if err != nil {
			p.fail(j, err)
			return
		}
		img = decoded
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		p.fail(j, ErrInvalidDimensions)
		return
	}

	resizer := p.opts.Resizer
	resizer.Policy = j.req.Policy
	targetW, targetH := resizer.TargetPixels(j.req.Cols, j.req.Rows, p.caps, bounds.Dx(), bounds.Dy())
	if targetW <= 0 || targetH <= 0 {
		p.fail(j, ErrInvalidDimensions)
		return
	}
	resampled := resizer.Resample(img, targetW, targetH)

	opts := p.opts.Encode
	opts.Cols = j.req.Cols
	opts.Rows = j.req.Rows
	opts.CellWidth = p.caps.CellWidth
	opts.CellHeight = p.caps.CellHeight
	opts.Tmux = p.caps.IsTmux
	if p.encoder.Protocol() == Kitty && opts.ImageID == 0 {
		opts.ImageID = atomic.AddUint32(&p.kittyID, 1)
	}

	frame, err := p.encoder.Encode(resampled, opts)
	if err != nil && p.encoder.Protocol() != Halfblocks {
		// Encoder-internal failures degrade to the glyph fallback rather
		// than surfacing to the render loop.
		frame, err = (&HalfblocksEncoder{}).Encode(resampled, opts)
	}
	if err != nil {
		p.fail(j, err)
		return
	}

	p.cache.Publish(j.key, j.generation, frame)

	p.mu.Lock()
	if p.pending[j.key] == j {
		delete(p.pending, j.key)
	}
	p.mu.Unlock()
}

func (p *Pipeline) fail(j *job, err error) {
	p.mu.Lock()
	if p.pending[j.key] == j {
		delete(p.pending, j.key)
	}
	p.failed[j.key] = err
	p.mu.Unlock()
}
