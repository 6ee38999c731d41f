package swap

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"gofastdb/internal/database"
	"gofastdb/internal/value"
)

// Kind is one of the three job shapes
type Kind int

const (
	KindLoad Kind = iota
	KindPrepareSwap
	KindDoSwap
)

// JobState tracks where a Job sits for the cancellation protocol: a job is
// Queued while only sitting in Pool.jobs, Processing while a worker owns it,
// Done once its completion has been pushed. The engine's cancellation path
// spin-waits on this to implement the "re-check until it moves
// to completed" rule.
type JobState int32

const (
	JobQueued JobState = iota
	JobProcessing
	JobDone
)

// Job is one unit of swap-subsystem work, submitted by the engine and
// consumed by a worker goroutine.
type Job struct {
	Kind Kind
	Key  string
	DB   int

	// PREPARE_SWAP/DO_SWAP input.
	Obj       *value.Object
	EntryTh   int // hash packed-map thresholds, needed to reconstruct on LOAD
	ValueTh   int

	// DO_SWAP input (pages reserved by the engine after PREPARE_SWAP
	// reports its required count) / LOAD input (pages to read back).
	Page  int
	Pages int
	Type  value.Type

	cancelled int32
	state     int32
}

// Cancel flags j as cancelled, "flip the cancelled flag"
// protocol; the completion handler must check Cancelled before acting.
func (j *Job) Cancel() { atomic.StoreInt32(&j.cancelled, 1) }

// Cancelled reports whether Cancel was called, regardless of whether the
// job had already finished by the time it was.
func (j *Job) Cancelled() bool { return atomic.LoadInt32(&j.cancelled) == 1 }

// State reports the job's current lifecycle position, for the engine's
// spin-wait cancellation path: spin-wait a microsecond and re-check until
// it moves to completed.
func (j *Job) State() JobState { return JobState(atomic.LoadInt32(&j.state)) }

// Completion is what a worker pushes once a Job finishes (or is found
// cancelled).
type Completion struct {
	Job    *Job
	Err    error
	Pages  int           // PREPARE_SWAP: pages required to hold the encoded value
	Loaded *value.Object // LOAD: the reconstructed value, Storage left at StorageMemory
}

// Pool runs vm_max_threads worker goroutines over a shared job queue,
// touching only the swap file and the page bitmap — never a database,
// client, or replica.
type Pool struct {
	file  *File
	alloc *PageAllocator

	jobs        chan *Job
	completions chan Completion
	wg          sync.WaitGroup
}

// NewPool starts workers workers reading from a job queue of depth
// queueDepth, writing/reading pages through file and alloc.
func NewPool(file *File, alloc *PageAllocator, workers, queueDepth int) *Pool {
	p := &Pool{
		file:        file,
		alloc:       alloc,
		jobs:        make(chan *Job, queueDepth),
		completions: make(chan Completion, queueDepth),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues job for a worker to pick up. The caller (engine) owns
// job's lifetime until its completion is observed.
func (p *Pool) Submit(job *Job) { p.jobs <- job }

// Completions is the channel the engine drains once per loop iteration,
// the Go stand-in for the pipe-wakeup.
func (p *Pool) Completions() <-chan Completion { return p.completions }

// Close stops accepting new jobs and waits for in-flight workers to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.completions)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		atomic.StoreInt32(&job.state, int32(JobProcessing))
		if job.Cancelled() {
			atomic.StoreInt32(&job.state, int32(JobDone))
			p.completions <- Completion{Job: job, Err: errCancelled}
			continue
		}
		comp := p.run(job)
		atomic.StoreInt32(&job.state, int32(JobDone))
		p.completions <- comp
	}
}

func (p *Pool) run(job *Job) Completion {
	switch job.Kind {
	case KindPrepareSwap:
		encoded := Encode(job.Obj)
		pages := (len(encoded) + p.alloc.PageSize() - 1) / p.alloc.PageSize()
		if pages == 0 {
			pages = 1
		}
		return Completion{Job: job, Pages: pages}
	case KindDoSwap:
		encoded := Encode(job.Obj)
		buf := make([]byte, job.Pages*p.alloc.PageSize())
		copy(buf, encoded)
		if err := p.file.WriteAt(buf, job.Page); err != nil {
			return Completion{Job: job, Err: err}
		}
		return Completion{Job: job}
	case KindLoad:
		buf := make([]byte, job.Pages*p.alloc.PageSize())
		if err := p.file.ReadAt(buf, job.Page); err != nil {
			return Completion{Job: job, Err: err}
		}
		obj, err := Decode(job.Type, buf, job.EntryTh, job.ValueTh)
		if err != nil {
			return Completion{Job: job, Err: err}
		}
		return Completion{Job: job, Loaded: obj}
	default:
		return Completion{Job: job, Err: fmt.Errorf("swap: unknown job kind %d", job.Kind)}
	}
}

type poolError string

func (e poolError) Error() string { return string(e) }

const errCancelled = poolError("swap: job cancelled")

// SelectCandidate implements the candidate scoring: sample up to
// tries random entries from db (capped at len(db.Dict)), keep only those
// with refcount exactly 1 and storage MEMORY, and return the one scoring
// highest on age×log(1+estimated size). now is the current Unix time used
// to compute age; estimatedSize approximates payload size without a full
// Encode pass; the scoring formula is deliberately a heuristic, not a
// fixed contract other components may rely on.
func SelectCandidate(db *database.DB, now int64, tries int) (key string, obj *value.Object, ok bool) {
	var bestScore float64 = -1
	seen := 0
	for k, o := range db.Dict {
		if seen >= tries {
			break
		}
		seen++
		if o.Storage != value.StorageMemory || o.RefCount() != 1 {
			continue
		}
		age := float64(now - o.ATime)
		if age < 0 {
			age = 0
		}
		score := age * math.Log(1+estimatedSize(o))
		if score > bestScore {
			bestScore = score
			key, obj, ok = k, o, true
		}
	}
	return key, obj, ok
}

func estimatedSize(o *value.Object) float64 {
	switch o.Type {
	case value.TypeString:
		return float64(len(o.Bytes()))
	case value.TypeList:
		return float64(o.List.Length()) * 16
	case value.TypeSet:
		return float64(len(o.Set)) * 16
	case value.TypeZSet:
		return float64(o.ZSet.Len()) * 24
	case value.TypeHash:
		return float64(o.Hash.Len()) * 24
	default:
		return 0
	}
}
