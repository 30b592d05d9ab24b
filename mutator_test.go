package mutator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cast"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/tracez"
)

const (
	instantiableClass    = `mutator\tests\DummyInstantiable`
	notInstantiableClass = `mutator\tests\DummyNotInstantiable`
	requiredArgsClass    = `mutator\tests\DummyRequiredArgs`
	emptyClass           = "StdClass"
)

type dummy struct{}

type dummyWithArgs struct {
	arg string
}

func multiply(_ context.Context, value any, args Args) (any, error) {
	n, err := cast.ToIntE(value)
	if err != nil {
		return nil, err
	}
	multiplier, err := args.Int(0, 2)
	if err != nil {
		return nil, err
	}
	return n * multiplier, nil
}

func divide(_ *dummy, _ context.Context, value any, args Args) (any, error) {
	n, err := cast.ToIntE(value)
	if err != nil {
		return nil, err
	}
	divisor, err := args.Int(0, 2)
	if err != nil {
		return nil, err
	}
	if divisor == 0 {
		return nil, errors.New("division by zero")
	}
	return n / divisor, nil
}

func repeatMethod[T any](_ T, _ context.Context, value any, args Args) (any, error) {
	times, err := args.Int(0, 2)
	if err != nil {
		return nil, err
	}
	return strings.Repeat(cast.ToString(value), times), nil
}

func testClasses() *Classes {
	return NewClasses(
		NewClass(instantiableClass, func() (*dummy, error) { return &dummy{}, nil }).
			Static("multiply", multiply).
			Method("divide", divide).
			Method("repeat", repeatMethod[*dummy]).
			Protected("protectedMethod", func(_ *dummy, _ context.Context, value any, _ Args) (any, error) {
				return value, nil
			}),
		NewAbstractClass[*dummy](notInstantiableClass).
			Method("repeat", repeatMethod[*dummy]),
		NewClassWithParams(requiredArgsClass, []string{"arg"}, func(args ...string) (*dummyWithArgs, error) {
			return &dummyWithArgs{arg: args[0]}, nil
		}).
			Method("repeat", repeatMethod[*dummyWithArgs]),
		NewClass(emptyClass, func() (struct{}, error) { return struct{}{}, nil }),
	)
}

func clip(_ context.Context, value any, args Args) (any, error) {
	length, err := args.Int(0, 5)
	if err != nil {
		return nil, err
	}
	return substr(cast.ToString(value), Args{"0", cast.ToString(length)})
}

// newTestMutator mirrors a Mutator subclass that defines a clip method.
func newTestMutator(opts ...Option) *Mutator {
	base := []Option{
		WithMacros(NewMacros()),
		WithClasses(testClasses()),
		WithMethod("clip", clip),
	}
	return New(append(base, opts...)...)
}

func TestMutate(t *testing.T) {
	ctx := context.Background()

	t.Run("Accepts Global Function", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.Mutate(ctx, "foo", "strtoupper")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "FOO" {
			t.Errorf("expected 'FOO', got %v", result)
		}
	})

	t.Run("Accepts Mutator Method", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.Mutate(ctx, "quick red fox", "clip")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "quick" {
			t.Errorf("expected 'quick', got %v", result)
		}
	})

	t.Run("Accepts Class Static Method", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.Mutate(ctx, 2, instantiableClass+"@multiply")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != 4 {
			t.Errorf("expected 4, got %v", result)
		}
	})

	t.Run("Accepts Class Instance Method", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.Mutate(ctx, 10, instantiableClass+"@divide")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != 5 {
			t.Errorf("expected 5, got %v", result)
		}
	})

	t.Run("Accepts Additional Parameters", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.Mutate(ctx, "quick red fox", "substr:2,3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "ick" {
			t.Errorf("expected 'ick', got %v", result)
		}
	})

	t.Run("Accepts Pipe Separated Stages", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		for _, spec := range []string{"substr:0,5|strtoupper", "substr:0,5|uppercase", " substr:0,5 | uppercase "} {
			result, err := m.Mutate(ctx, "quick red fox", spec)
			if err != nil {
				t.Fatalf("%q: unexpected error: %v", spec, err)
			}
			if result != "QUICK" {
				t.Errorf("%q: expected 'QUICK', got %v", spec, result)
			}
		}
	})

	t.Run("Accepts Sequence Of Stages", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.MutateEach(ctx, "quick red fox",
			"substr:5,10",                 // " red fox"
			"strtoupper",                  // " RED FOX"
			"clip:4",                      // " RED"
			instantiableClass+"@repeat:3", // " RED RED RED"
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != " RED RED RED" {
			t.Errorf("expected ' RED RED RED', got %q", result)
		}
	})

	t.Run("Sequence Equals Pipe Joined", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		stages := []string{"substr:5,10", "strtoupper", "clip:4", instantiableClass + "@repeat:3"}
		each, err := m.MutateEach(ctx, "quick red fox", stages...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		joined, err := m.Mutate(ctx, "quick red fox", strings.Join(stages, "|"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if each != joined {
			t.Errorf("expected %q, got %q", joined, each)
		}
	})

	t.Run("Sequence Elements Are Not Split", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		_, err := m.MutateEach(ctx, "quick red fox", "strtoupper|strtolower")
		if !errors.Is(err, ErrInvalidSpecification) {
			t.Fatalf("expected invalid specification, got %v", err)
		}
	})

	t.Run("Empty Sequence Returns Value", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.MutateEach(ctx, 42)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != 42 {
			t.Errorf("expected 42, got %v", result)
		}
	})

	t.Run("Nil Context", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		//nolint:staticcheck // testing nil context handling
		result, err := m.Mutate(nil, "foo", "upper")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "FOO" {
			t.Errorf("expected 'FOO', got %v", result)
		}
	})
}

func TestMutateInvalidSpecification(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		reason error
		spec   string
	}{
		{ErrMalformedStage, "jibberrish!@#$%^&*("},
		{ErrUnknownMethod, emptyClass + "@jibberrish"},
		{ErrUnknownClass, "NoSuchClass@repeat"},
		{ErrUnknownTarget, "wrong_function"},
		{ErrNotInstantiable, notInstantiableClass + "@repeat:3"},
		{ErrNotInstantiable, requiredArgsClass + "@repeat:3"},
		{ErrNotPublic, instantiableClass + "@protectedMethod"},
		{ErrMalformedStage, ""},
		{ErrMalformedStage, "substr:"},
		{ErrMalformedStage, "@upper"},
		{ErrMalformedStage, "Class@@upper"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			m := newTestMutator()
			defer m.Close()

			result, err := m.MutateEach(ctx, "quick red fox", tt.spec)
			if err == nil {
				t.Fatalf("expected error, got result %v", result)
			}
			if !errors.Is(err, ErrInvalidSpecification) {
				t.Errorf("expected ErrInvalidSpecification, got %v", err)
			}
			if !errors.Is(err, tt.reason) {
				t.Errorf("expected %v, got %v", tt.reason, err)
			}
			var specErr *SpecError
			if !errors.As(err, &specErr) {
				t.Fatal("expected *SpecError")
			}
			if specErr.Mutator != DefaultName {
				t.Errorf("expected mutator name %q, got %q", DefaultName, specErr.Mutator)
			}
			if result != "quick red fox" {
				t.Errorf("expected input value back, got %v", result)
			}
		})
	}

	t.Run("Failure Discards Earlier Stages", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.Mutate(ctx, "quick red fox", "strtoupper|wrong_function")
		if !errors.Is(err, ErrInvalidSpecification) {
			t.Fatalf("expected invalid specification, got %v", err)
		}
		if result != "quick red fox" {
			t.Errorf("expected original value, got %v", result)
		}

		var specErr *SpecError
		if errors.As(err, &specErr) && specErr.Index != 1 {
			t.Errorf("expected failing stage index 1, got %d", specErr.Index)
		}
	})

	t.Run("Malformed Stage Stops Before Anything Runs", func(t *testing.T) {
		calls := 0
		m := newTestMutator(WithMethod("count", func(_ context.Context, v any, _ Args) (any, error) {
			calls++
			return v, nil
		}))
		defer m.Close()

		_, err := m.Mutate(ctx, "x", "count|bad stage")
		if !errors.Is(err, ErrMalformedStage) {
			t.Fatalf("expected malformed stage, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected no stage to run, ran %d", calls)
		}
	})
}

func TestMutateOperationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Operation Error Is Not Translated", func(t *testing.T) {
		boom := errors.New("boom")
		m := newTestMutator()
		defer m.Close()
		m.Macro("explode", func(_ context.Context, _ any, _ Args) (any, error) {
			return nil, boom
		})

		result, err := m.Mutate(ctx, "value", "upper|explode")
		if err != boom { //nolint:errorlint // must be the very same error
			t.Fatalf("expected the operation's own error, got %v", err)
		}
		if errors.Is(err, ErrInvalidSpecification) {
			t.Error("operation errors must not be reported as invalid specification")
		}
		if result != "value" {
			t.Errorf("expected input value back, got %v", result)
		}
	})

	t.Run("Oversized Repeat Returns Error", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		result, err := m.Mutate(ctx, "ab", "str_repeat:9223372036854775807")
		if err == nil || IsInvalidSpecification(err) {
			t.Fatalf("expected an operation error, got %v", err)
		}
		if result != "ab" {
			t.Errorf("expected input value back, got %v", result)
		}
	})

	t.Run("Division By Zero Propagates", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		_, err := m.Mutate(ctx, 10, instantiableClass+"@divide:0")
		if err == nil || err.Error() != "division by zero" {
			t.Errorf("expected division by zero, got %v", err)
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := m.Mutate(cctx, "foo", "upper")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestResolutionPrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("Macro Beats Method And Function", func(t *testing.T) {
		m := newTestMutator(WithMethod("upper", Unary(func(any) any { return "method" })))
		defer m.Close()
		m.Macro("upper", Unary(func(any) any { return "macro" }))

		result, err := m.Mutate(ctx, "x", "upper")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "macro" {
			t.Errorf("expected macro to win, got %v", result)
		}
	})

	t.Run("Method Beats Function", func(t *testing.T) {
		m := newTestMutator(WithMethod("upper", Unary(func(any) any { return "method" })))
		defer m.Close()

		result, err := m.Mutate(ctx, "x", "upper")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "method" {
			t.Errorf("expected method to win, got %v", result)
		}
	})

	t.Run("Static Beats Instance", func(t *testing.T) {
		classes := NewClasses(
			NewAbstractClass[*dummy]("Both").
				Static("run", Unary(func(any) any { return "static" })).
				Method("run", func(*dummy, context.Context, any, Args) (any, error) { return "instance", nil }),
		)
		m := newTestMutator(WithClasses(classes))
		defer m.Close()

		result, err := m.Mutate(ctx, "x", "Both@run")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "static" {
			t.Errorf("expected static binding, got %v", result)
		}
	})

	t.Run("Resolved Freshly Per Call", func(t *testing.T) {
		built := 0
		classes := NewClasses(
			NewClass("Counter", func() (*dummy, error) {
				built++
				return &dummy{}, nil
			}).Method("id", func(*dummy, context.Context, any, Args) (any, error) { return "ok", nil }),
		)
		m := newTestMutator(WithClasses(classes))
		defer m.Close()

		for i := 0; i < 3; i++ {
			if _, err := m.Mutate(ctx, "x", "Counter@id"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if built != 3 {
			t.Errorf("expected 3 instantiations, got %d", built)
		}
	})
}

func TestMacros(t *testing.T) {
	ctx := context.Background()

	t.Run("Can Be Extended With Macros", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		m.Macro("custom_uppercase", Strings(func(s string, _ Args) (string, error) {
			return strings.ToUpper(s), nil
		}))

		result, err := m.MutateEach(ctx, "quick red fox", "custom_uppercase")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "QUICK RED FOX" {
			t.Errorf("expected 'QUICK RED FOX', got %v", result)
		}
	})

	t.Run("Shared Across Instances", func(t *testing.T) {
		macros := NewMacros()
		first := New(WithMacros(macros))
		defer first.Close()
		second := New(WithMacros(macros))
		defer second.Close()

		first.Macro("exclaim", Strings(func(s string, _ Args) (string, error) { return s + "!", nil }))

		result, err := second.Mutate(ctx, "hey", "exclaim")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "hey!" {
			t.Errorf("expected 'hey!', got %v", result)
		}
	})

	t.Run("Process Wide Default", func(t *testing.T) {
		first := New()
		defer first.Close()
		second := New()
		defer second.Close()

		first.Macro("mutator_test_default_macro", Unary(func(any) any { return "shared" }))

		result, err := second.Mutate(ctx, "x", "mutator_test_default_macro")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "shared" {
			t.Errorf("expected 'shared', got %v", result)
		}
		if first.Macros() != DefaultMacros() {
			t.Error("expected default registry")
		}
	})

	t.Run("Overwrites Earlier Registration", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		m.Macro("pick", Unary(func(any) any { return "first" }))
		m.Macro("pick", Unary(func(any) any { return "second" }))

		result, err := m.Mutate(ctx, "x", "pick")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "second" {
			t.Errorf("expected 'second', got %v", result)
		}
	})

	t.Run("Receives Parsed Arguments", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		var got Args
		m.Macro("capture", func(_ context.Context, v any, args Args) (any, error) {
			got = args
			return v, nil
		})

		if _, err := m.Mutate(ctx, "x", "capture:a,b,,c"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"a", "b", "", "c"}
		if len(got) != len(want) {
			t.Fatalf("expected %d args, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("arg %d: expected %q, got %q", i, want[i], got[i])
			}
		}
	})
}

func TestValidate(t *testing.T) {
	m := newTestMutator()
	defer m.Close()

	if err := m.Validate("substr:0,5|upper", "clip:3", instantiableClass+"@repeat"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := m.Validate("upper", "upper|wrong_function")
	if !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("expected unknown target, got %v", err)
	}

	if err := m.Validate("bad target"); !errors.Is(err, ErrMalformedStage) {
		t.Errorf("expected malformed stage, got %v", err)
	}
}

func TestMutatorObservability(t *testing.T) {
	ctx := context.Background()

	t.Run("Metrics and Spans - Success", func(t *testing.T) {
		m := newTestMutator(WithClock(clockz.NewFakeClock()))
		defer m.Close()

		if m.Metrics() == nil {
			t.Error("expected metrics registry to be initialized")
		}
		if m.Tracer() == nil {
			t.Error("expected tracer to be initialized")
		}

		var spans []tracez.Span
		var spanMu sync.Mutex
		m.Tracer().OnSpanComplete(func(span tracez.Span) {
			spanMu.Lock()
			spans = append(spans, span)
			spanMu.Unlock()
		})

		if _, err := m.Mutate(ctx, "quick red fox", "substr:0,5|upper|clip:2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if v := m.Metrics().Counter(ProcessedTotal).Value(); v != 1 {
			t.Errorf("expected 1 processed, got %f", v)
		}
		if v := m.Metrics().Counter(SuccessesTotal).Value(); v != 1 {
			t.Errorf("expected 1 success, got %f", v)
		}
		if v := m.Metrics().Counter(StagesAppliedTotal).Value(); v != 3 {
			t.Errorf("expected 3 applied stages, got %f", v)
		}
		if v := m.Metrics().Gauge(StagesTotal).Value(); v != 3 {
			t.Errorf("expected 3 total stages, got %f", v)
		}
		if v := m.Metrics().Gauge(DurationMs).Value(); v != 0 {
			t.Errorf("expected zero duration on a fake clock, got %f", v)
		}

		spanMu.Lock()
		defer spanMu.Unlock()
		if len(spans) != 4 {
			t.Fatalf("expected 4 spans (1 main + 3 stages), got %d", len(spans))
		}
		for _, span := range spans {
			switch span.Name {
			case ProcessSpan:
				if span.Tags[TagSuccess] != "true" {
					t.Errorf("expected success tag, got %q", span.Tags[TagSuccess])
				}
			case StageSpan:
				if _, ok := span.Tags[TagTarget]; !ok {
					t.Error("stage span missing target tag")
				}
				if _, ok := span.Tags[TagStageNumber]; !ok {
					t.Error("stage span missing stage_number tag")
				}
			}
		}
	})

	t.Run("Spans - Stage Failure", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		var spans []tracez.Span
		var spanMu sync.Mutex
		m.Tracer().OnSpanComplete(func(span tracez.Span) {
			spanMu.Lock()
			spans = append(spans, span)
			spanMu.Unlock()
		})

		_, _ = m.Mutate(ctx, 10, "abs|"+instantiableClass+"@divide:0") //nolint:errcheck

		spanMu.Lock()
		defer spanMu.Unlock()
		var stages []tracez.Span
		for _, span := range spans {
			if span.Name == StageSpan {
				stages = append(stages, span)
			}
		}
		if len(stages) != 2 {
			t.Fatalf("expected 2 stage spans, got %d", len(stages))
		}
		if stages[0].Tags[TagSuccess] != "true" {
			t.Errorf("expected first stage to succeed, got %q", stages[0].Tags[TagSuccess])
		}
		if stages[1].Tags[TagSuccess] != "false" {
			t.Errorf("expected failed stage tag, got %q", stages[1].Tags[TagSuccess])
		}
		if stages[1].Tags[TagError] != "division by zero" {
			t.Errorf("expected error tag, got %q", stages[1].Tags[TagError])
		}
	})

	t.Run("Metrics - Resolution Failure", func(t *testing.T) {
		m := newTestMutator()
		defer m.Close()

		_, _ = m.Mutate(ctx, "x", "upper|wrong_function") //nolint:errcheck

		if v := m.Metrics().Counter(FailuresTotal).Value(); v != 1 {
			t.Errorf("expected 1 failure, got %f", v)
		}
		if v := m.Metrics().Counter(ResolutionFailuresTotal).Value(); v != 1 {
			t.Errorf("expected 1 resolution failure, got %f", v)
		}
		if v := m.Metrics().Counter(StagesAppliedTotal).Value(); v != 1 {
			t.Errorf("expected 1 applied stage before the failure, got %f", v)
		}
	})

	t.Run("Hooks", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		m := newTestMutator(WithName("attributes"), WithClock(clock))
		defer m.Close()

		var mu sync.Mutex
		var stageEvents, failureEvents []Event
		if err := m.OnStageComplete(func(_ context.Context, e Event) error {
			mu.Lock()
			stageEvents = append(stageEvents, e)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("unexpected hook error: %v", err)
		}
		if err := m.OnResolutionFailed(func(_ context.Context, e Event) error {
			mu.Lock()
			failureEvents = append(failureEvents, e)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("unexpected hook error: %v", err)
		}

		if _, err := m.Mutate(ctx, "quick", "upper|clip:2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, _ = m.Mutate(ctx, "quick", "upper|nope") //nolint:errcheck

		// Wait for async hooks to fire
		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if len(stageEvents) != 3 {
			t.Errorf("expected 3 stage events, got %d", len(stageEvents))
		}
		for _, e := range stageEvents {
			if e.Mutator != "attributes" || !e.Success {
				t.Errorf("unexpected stage event: %+v", e)
			}
			if !e.Timestamp.Equal(clock.Now()) {
				t.Errorf("expected fake clock timestamp, got %v", e.Timestamp)
			}
		}
		if len(failureEvents) != 1 {
			t.Fatalf("expected 1 resolution failure event, got %d", len(failureEvents))
		}
		if failureEvents[0].Target != "nope" || failureEvents[0].StageNumber != 2 {
			t.Errorf("unexpected failure event: %+v", failureEvents[0])
		}
		if !errors.Is(failureEvents[0].Error, ErrUnknownTarget) {
			t.Errorf("expected unknown target in event, got %v", failureEvents[0].Error)
		}
	})
}
