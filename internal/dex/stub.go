package dex

import (
	"context"
	"sync"
)

// StubVenueResult scripts one venue's behavior in a StubClient.
type StubVenueResult struct {
	Result SwapResult
	Err    error
}

// StubClient is a scriptable execution client for simulate mode and tests.
// Behavior is keyed by (chain, dex); unknown venues fill at the quoted price.
type StubClient struct {
	mu       sync.Mutex
	venues   map[string]StubVenueResult
	requests []SwapRequest
}

// NewStubClient creates an empty stub client.
func NewStubClient() *StubClient {
	return &StubClient{venues: make(map[string]StubVenueResult)}
}

// SetVenue scripts the result for a (chain, dex) pair.
func (s *StubClient) SetVenue(chain, dexID string, r StubVenueResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[chain+"/"+dexID] = r
}

// Requests returns all submissions seen so far, in order.
func (s *StubClient) Requests() []SwapRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SwapRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// SubmitSwap records the request and replays the scripted result.
func (s *StubClient) SubmitSwap(_ context.Context, req SwapRequest) (SwapResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	if r, ok := s.venues[req.Chain+"/"+req.DEX]; ok {
		return r.Result, r.Err
	}
	// Default: clean fill at par.
	return SwapResult{
		TxHash:           "stub-" + req.AttemptID[:8],
		QuotedPriceUSD:   1,
		RealizedPriceUSD: 1,
	}, nil
}

var _ Client = (*StubClient)(nil)
