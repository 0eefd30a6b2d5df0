package analyzer

import (
	"context"
	"fmt"
	"sync"
)

// FakeAnalyzer returns canned analyses and records what it was asked for
type FakeAnalyzer struct {
	mu      sync.Mutex
	results map[string]*Analysis
	errs    map[string]error
	calls   []string
}

// NewFakeAnalyzer creates an empty fake
func NewFakeAnalyzer() *FakeAnalyzer {
	return &FakeAnalyzer{
		results: make(map[string]*Analysis),
		errs:    make(map[string]error),
	}
}

// Set registers the analysis returned for uri
func (f *FakeAnalyzer) Set(uri string, a *Analysis) *FakeAnalyzer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[uri] = a
	return f
}

// Fail makes uri return err
func (f *FakeAnalyzer) Fail(uri string, err error) *FakeAnalyzer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[uri] = err
	return f
}

// Calls returns the URIs analyzed so far, in call order
func (f *FakeAnalyzer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeAnalyzer) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uri)
	result, ok := f.results[uri]
	err := f.errs[uri]
	f.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("video file not found: %s", uri)
	}

	return result.Clone(), nil
}
