package chaptersync

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagetune/pagetune-server/internal/domain"
)

type fakePlayer struct {
	mu      sync.Mutex
	loads   []string
	plays   int
	pauses  int
	stops   int
	current string
	loadErr error
}

func (p *fakePlayer) Load(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	p.loads = append(p.loads, url)
	p.current = url
	return nil
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.current = ""
	return nil
}

func (p *fakePlayer) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePlayer) Loads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.loads...)
}

func (p *fakePlayer) Counts() (plays, pauses, stops int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays, p.pauses, p.stops
}

// gatedPlayer holds Load for any URL passed to hold until the test
// releases it. With ignoreCtx set a held Load also outlives cancellation.
type gatedPlayer struct {
	*fakePlayer
	loading   chan string
	ignoreCtx bool

	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedPlayer() *gatedPlayer {
	return &gatedPlayer{
		fakePlayer: &fakePlayer{},
		loading:    make(chan string, 16),
		gates:      make(map[string]chan struct{}),
	}
}

func (p *gatedPlayer) hold(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gates[url] = make(chan struct{})
}

func (p *gatedPlayer) release(url string) {
	p.mu.Lock()
	gate := p.gates[url]
	delete(p.gates, url)
	p.mu.Unlock()
	close(gate)
}

func (p *gatedPlayer) Load(ctx context.Context, url string) error {
	p.mu.Lock()
	gate, held := p.gates[url]
	p.mu.Unlock()
	if held {
		p.loading <- url
		if p.ignoreCtx {
			<-gate
			return p.fakePlayer.Load(ctx, url)
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.fakePlayer.Load(ctx, url)
}

type fakeCheckpoints struct {
	mu     sync.Mutex
	saved  map[string]domain.ProgressCheckpoint
	puts   int
	putErr error
	getErr error
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{saved: make(map[string]domain.ProgressCheckpoint)}
}

func (s *fakeCheckpoints) GetCheckpoint(_ context.Context, documentID string) (*domain.ProgressCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	cp, ok := s.saved[documentID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (s *fakeCheckpoints) PutCheckpoint(_ context.Context, cp *domain.ProgressCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.saved[cp.DocumentID] = *cp
	return nil
}

func (s *fakeCheckpoints) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *fakeCheckpoints) SetPutErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *fakeCheckpoints) Saved(documentID string) (domain.ProgressCheckpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.saved[documentID]
	return cp, ok
}

type genResult struct {
	url string
	err error
}

// gatedGenerator blocks each chapter's request until the test releases it.
// When honorCtx is false it ignores cancellation, modelling a service that
// answers after the caller stopped caring.
type gatedGenerator struct {
	honorCtx bool
	requests chan TrackRequest

	mu    sync.Mutex
	gates map[int]chan genResult
}

func newGatedGenerator(honorCtx bool) *gatedGenerator {
	return &gatedGenerator{
		honorCtx: honorCtx,
		requests: make(chan TrackRequest, 16),
		gates:    make(map[int]chan genResult),
	}
}

func (g *gatedGenerator) gate(idx int) chan genResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[idx]
	if !ok {
		ch = make(chan genResult, 1)
		g.gates[idx] = ch
	}
	return ch
}

func (g *gatedGenerator) release(idx int, url string, err error) {
	g.gate(idx) <- genResult{url: url, err: err}
}

func (g *gatedGenerator) GenerateTrack(ctx context.Context, req TrackRequest) (string, error) {
	g.requests <- req
	gate := g.gate(req.ChapterIndex)
	if !g.honorCtx {
		r := <-gate
		return r.url, r.err
	}
	select {
	case r := <-gate:
		return r.url, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// instantGenerator answers immediately with a URL derived from the request.
type instantGenerator struct {
	mu    sync.Mutex
	calls []TrackRequest
	err   error
}

func (g *instantGenerator) GenerateTrack(_ context.Context, req TrackRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("gen://%s/%d", req.DocumentID, req.ChapterIndex), nil
}

func (g *instantGenerator) Calls() []TrackRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]TrackRequest(nil), g.calls...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) OfType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeDocuments struct {
	doc *domain.Document
	err error
}

func (d *fakeDocuments) GetDocument(_ context.Context, _ string) (*domain.Document, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.doc, nil
}
