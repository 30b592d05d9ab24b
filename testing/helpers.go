// Package testing provides test utilities for code that registers
// operations with a mutator.
//
// Example usage:
//
//	func TestAttributeCasts(t *testing.T) {
//		mock := mutatortest.NewMockOperation(t, "encrypt").WithReturn("cipher", nil)
//
//		m := mutator.New(mutator.WithMacros(mutator.NewMacros()))
//		m.Macro("encrypt", mock.Operation())
//
//		result, err := m.Mutate(ctx, "plain", "trim|encrypt:aes")
//		...
//		mutatortest.AssertCalled(t, mock, 1)
//		mutatortest.AssertCalledWith(t, mock, "plain", "aes")
//	}
package testing

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/mutator"
)

// MockOperation records how a mutator.Operation was invoked and returns
// configured values. By default it returns its input unchanged.
type MockOperation struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           *testing.T
	name        string
	callCount   int64
	clock       clockz.Clock
	returnVal   any
	returnErr   error
	configured  bool
	fn          func(value any, args mutator.Args) (any, error)
	mu          sync.RWMutex
	callHistory []MockCall
	maxHistory  int
}

// MockCall represents a single invocation of the mock operation.
type MockCall struct {
	Timestamp time.Time
	Context   context.Context
	Input     any
	Args      mutator.Args
}

// NewMockOperation creates a new mock operation for testing.
func NewMockOperation(t *testing.T, name string) *MockOperation {
	return &MockOperation{
		t:          t,
		name:       name,
		clock:      clockz.RealClock,
		maxHistory: 100, // Keep last 100 calls by default
	}
}

// WithReturn configures the mock to return specific values.
func (m *MockOperation) WithReturn(val any, err error) *MockOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnVal = val
	m.returnErr = err
	m.configured = true
	m.fn = nil
	return m
}

// WithFunc configures the mock to compute its result with fn.
func (m *MockOperation) WithFunc(fn func(value any, args mutator.Args) (any, error)) *MockOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	m.configured = false
	return m
}

// WithClock sets the clock used to timestamp calls.
func (m *MockOperation) WithClock(clock clockz.Clock) *MockOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
	return m
}

// WithHistorySize configures how many calls to keep in history.
// Set to 0 to disable history tracking.
func (m *MockOperation) WithHistorySize(size int) *MockOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxHistory = size
	if size == 0 {
		m.callHistory = nil
	} else if len(m.callHistory) > size {
		m.callHistory = m.callHistory[len(m.callHistory)-size:]
	}
	return m
}

// Name returns the name of the mock operation.
func (m *MockOperation) Name() mutator.Name {
	return m.name
}

// Operation returns the mutator.Operation to register as a macro, method
// or function.
func (m *MockOperation) Operation() mutator.Operation {
	return m.call
}

func (m *MockOperation) call(ctx context.Context, value any, args mutator.Args) (any, error) {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	if m.maxHistory > 0 {
		m.callHistory = append(m.callHistory, MockCall{
			Input:     value,
			Args:      slices.Clone(args),
			Timestamp: m.clock.Now(),
			Context:   ctx,
		})
		if len(m.callHistory) > m.maxHistory {
			m.callHistory = m.callHistory[1:] // Remove oldest
		}
	}
	fn := m.fn
	configured := m.configured
	returnVal := m.returnVal
	returnErr := m.returnErr
	m.mu.Unlock()

	switch {
	case fn != nil:
		return fn(value, args)
	case configured:
		return returnVal, returnErr
	default:
		return value, nil
	}
}

// CallCount returns the number of times the operation has been invoked.
func (m *MockOperation) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// LastCall returns the most recent recorded call.
func (m *MockOperation) LastCall() (MockCall, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.callHistory) == 0 {
		return MockCall{}, false
	}
	return m.callHistory[len(m.callHistory)-1], true
}

// CallHistory returns a copy of all recorded calls.
func (m *MockOperation) CallHistory() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxHistory == 0 {
		return nil
	}
	return slices.Clone(m.callHistory)
}

// Reset clears all call tracking.
func (m *MockOperation) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.callCount, 0)
	m.callHistory = nil
}

// Assertion Helpers

// AssertCalled verifies that a mock operation was called exactly n times.
func AssertCalled(t *testing.T, mock *MockOperation, expectedCalls int) {
	t.Helper()
	actualCalls := mock.CallCount()
	if actualCalls != expectedCalls {
		t.Errorf("expected mock operation %s to be called %d times, but was called %d times",
			mock.name, expectedCalls, actualCalls)
	}
}

// AssertNotCalled verifies that a mock operation was never called.
func AssertNotCalled(t *testing.T, mock *MockOperation) {
	t.Helper()
	AssertCalled(t, mock, 0)
}

// AssertCalledWith verifies the input and arguments of the most recent call.
func AssertCalledWith(t *testing.T, mock *MockOperation, expectedInput any, expectedArgs ...string) {
	t.Helper()
	call, ok := mock.LastCall()
	if !ok {
		t.Errorf("expected mock operation %s to be called with input %v, but it was never called",
			mock.name, expectedInput)
		return
	}
	if call.Input != expectedInput {
		t.Errorf("expected mock operation %s to be called with input %v, but was called with %v",
			mock.name, expectedInput, call.Input)
	}
	if !slices.Equal([]string(call.Args), expectedArgs) {
		t.Errorf("expected mock operation %s to be called with args %q, but was called with %q",
			mock.name, expectedArgs, []string(call.Args))
	}
}

// AssertInvalidSpecification verifies that err reports a bad spec.
func AssertInvalidSpecification(t *testing.T, err error) {
	t.Helper()
	if !mutator.IsInvalidSpecification(err) {
		t.Errorf("expected invalid specification error, got %v", err)
	}
}
