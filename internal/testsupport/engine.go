package testsupport

import (
	"context"
	"errors"
	"sync"
	"time"

	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/models"
)

// FakeEngine is an in-memory engine.Engine that records calls.
type FakeEngine struct {
	mu sync.Mutex

	// LoadErr makes Load fail for the listed models.
	LoadErr map[models.ID]error
	// LoadDelay stretches Load to expose concurrent callers.
	LoadDelay time.Duration
	// Transcript is returned by every Run.
	Transcript engine.RawTranscript
	// RunErr makes Run fail.
	RunErr error
	// RunPanic makes Run panic with the given value.
	RunPanic any
	// ReleaseErr makes ReleaseMemory fail.
	ReleaseErr error

	loads       map[models.ID]int
	runs        int
	releases    int
	closed      int
	lastOptions engine.Options
	lastPath    string
}

// NewFakeEngine returns an engine that yields transcript from every run.
func NewFakeEngine(transcript engine.RawTranscript) *FakeEngine {
	return &FakeEngine{Transcript: transcript, loads: make(map[models.ID]int)}
}

func (f *FakeEngine) Load(_ context.Context, id models.ID, kind device.Kind) (engine.Model, error) {
	if f.LoadDelay > 0 {
		time.Sleep(f.LoadDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loads == nil {
		f.loads = make(map[models.ID]int)
	}
	f.loads[id]++
	if err := f.LoadErr[id]; err != nil {
		return nil, err
	}
	return &fakeModel{engine: f, id: id}, nil
}

func (f *FakeEngine) ReleaseMemory(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return f.ReleaseErr
}

// Loads returns how many times Load ran for id.
func (f *FakeEngine) Loads(id models.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[id]
}

// Runs returns how many times a model ran.
func (f *FakeEngine) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// Releases returns how many times ReleaseMemory ran.
func (f *FakeEngine) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// Closed returns how many models were closed.
func (f *FakeEngine) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// LastRun returns the audio path and options of the most recent run.
func (f *FakeEngine) LastRun() (string, engine.Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath, f.lastOptions
}

type fakeModel struct {
	engine *FakeEngine
	id     models.ID
}

func (m *fakeModel) ID() models.ID { return m.id }

func (m *fakeModel) Run(_ context.Context, audioPath string, opts engine.Options) (engine.RawTranscript, error) {
	f := m.engine
	f.mu.Lock()
	f.runs++
	f.lastPath = audioPath
	f.lastOptions = opts
	panicValue := f.RunPanic
	runErr := f.RunErr
	transcript := cloneTranscript(f.Transcript)
	f.mu.Unlock()

	if panicValue != nil {
		panic(panicValue)
	}
	if runErr != nil {
		return engine.RawTranscript{}, runErr
	}
	return transcript, nil
}

func (m *fakeModel) Close() error {
	m.engine.mu.Lock()
	defer m.engine.mu.Unlock()
	m.engine.closed++
	return nil
}

func cloneTranscript(raw engine.RawTranscript) engine.RawTranscript {
	out := raw
	out.Segments = make([]engine.Segment, len(raw.Segments))
	for i, seg := range raw.Segments {
		out.Segments[i] = seg
		if seg.Words != nil {
			out.Segments[i].Words = append([]engine.Word(nil), seg.Words...)
		}
	}
	return out
}

// ErrFakeLoad is a convenience load failure.
var ErrFakeLoad = errors.New("fake: model weights unavailable")

// Segment builds a segment whose words all carry probability p.
func Segment(start, end float64, text string, probabilities ...float64) engine.Segment {
	seg := engine.Segment{Start: start, End: end, Text: text}
	if len(probabilities) == 0 {
		return seg
	}
	step := (end - start) / float64(len(probabilities))
	for i, p := range probabilities {
		seg.Words = append(seg.Words, engine.Word{
			Text:        text,
			Start:       start + step*float64(i),
			End:         start + step*float64(i+1),
			Probability: p,
		})
	}
	return seg
}
