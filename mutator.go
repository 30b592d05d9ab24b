package mutator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the Mutator.
const (
	// Metrics.
	ProcessedTotal          = metricz.Key("mutator.processed.total")
	SuccessesTotal          = metricz.Key("mutator.successes.total")
	FailuresTotal           = metricz.Key("mutator.failures.total")
	ResolutionFailuresTotal = metricz.Key("mutator.resolution.failures.total")
	StagesAppliedTotal      = metricz.Key("mutator.stages.applied.total")
	StagesTotal             = metricz.Key("mutator.stages.total")
	DurationMs              = metricz.Key("mutator.duration.ms")

	// Spans.
	ProcessSpan = tracez.Key("mutator.process")
	StageSpan   = tracez.Key("mutator.stage")

	// Tags.
	TagStageCount  = tracez.Tag("mutator.stage_count")
	TagStageNumber = tracez.Tag("mutator.stage_number")
	TagTarget      = tracez.Tag("mutator.target")
	TagSuccess     = tracez.Tag("mutator.success")
	TagError       = tracez.Tag("mutator.error")

	// Hook event keys.
	EventStageComplete    = hookz.Key("mutator.stage_complete")
	EventResolutionFailed = hookz.Key("mutator.resolution_failed")
)

// DefaultName is the name of a Mutator created without WithName.
const DefaultName Name = "mutator"

// Event describes a stage being applied or failing to resolve. It is
// emitted asynchronously through hooks.
type Event struct {
	Timestamp   time.Time
	Error       error
	Mutator     Name
	Target      string
	Stage       string
	StageNumber int
	TotalStages int
	Duration    time.Duration
	Success     bool
}

// Mutator resolves spec strings into operations and pipes a value through
// them in order.
//
// Targets resolve in this order of precedence:
//   - "Class@method": a static member of Class, otherwise a public instance
//     method on a freshly built zero-argument instance
//   - a registered macro
//   - a method defined on this Mutator (WithMethod)
//   - a global function (see Builtins)
//
// Resolution happens on every call; nothing is cached between calls apart
// from what the registries hold.
//
// # Observability
//
// Metrics:
//   - mutator.processed.total: Counter of Mutate calls
//   - mutator.successes.total: Counter of calls that returned a value
//   - mutator.failures.total: Counter of calls that returned an error
//   - mutator.resolution.failures.total: Counter of invalid specifications
//   - mutator.stages.applied.total: Counter of stages applied successfully
//   - mutator.stages.total: Gauge of stages in the last call
//   - mutator.duration.ms: Gauge of the last call's duration
//
// Traces:
//   - mutator.process: Parent span for the whole call
//   - mutator.stage: Child span for each applied stage
//
// Events (via hooks):
//   - mutator.stage_complete: Fired after each stage is applied or fails
//   - mutator.resolution_failed: Fired when a stage cannot be parsed or resolved
type Mutator struct {
	clock     clockz.Clock
	macros    *Macros
	functions *Functions
	classes   *Classes
	methods   map[Name]Operation
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[Event]
	name      Name
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithName sets the name used in errors, spans and events.
func WithName(name Name) Option {
	return func(m *Mutator) { m.name = name }
}

// WithMacros shares a macro registry with this Mutator. Every Mutator
// given the same registry sees the same macros.
func WithMacros(macros *Macros) Option {
	return func(m *Mutator) { m.macros = macros }
}

// WithFunctions replaces the global function table.
func WithFunctions(functions *Functions) Option {
	return func(m *Mutator) { m.functions = functions }
}

// WithClasses makes the given classes addressable as "Class@method".
func WithClasses(classes *Classes) Option {
	return func(m *Mutator) { m.classes = classes }
}

// WithMethod defines a method on the Mutator itself.
func WithMethod(name Name, op Operation) Option {
	return func(m *Mutator) { m.methods[name] = op }
}

// WithMethods defines several methods on the Mutator itself.
func WithMethods(methods map[Name]Operation) Option {
	return func(m *Mutator) {
		for name, op := range methods {
			m.methods[name] = op
		}
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(clock clockz.Clock) Option {
	return func(m *Mutator) { m.clock = clock }
}

// New creates a Mutator. Without options it uses the process-wide macro
// registry, the built-in functions and no classes.
func New(opts ...Option) *Mutator {
	metrics := metricz.New()
	metrics.Counter(ProcessedTotal)
	metrics.Counter(SuccessesTotal)
	metrics.Counter(FailuresTotal)
	metrics.Counter(ResolutionFailuresTotal)
	metrics.Counter(StagesAppliedTotal)
	metrics.Gauge(StagesTotal)
	metrics.Gauge(DurationMs)

	m := &Mutator{
		name:    DefaultName,
		clock:   clockz.RealClock,
		methods: make(map[Name]Operation),
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[Event](),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.macros == nil {
		m.macros = DefaultMacros()
	}
	if m.functions == nil {
		m.functions = builtins
	}
	if m.classes == nil {
		m.classes = NewClasses()
	}
	return m
}

// Name returns the name of this Mutator.
func (m *Mutator) Name() Name {
	return m.name
}

// Macro registers op under name in this Mutator's macro registry,
// replacing any earlier registration. The macro is visible to every
// Mutator sharing the registry.
func (m *Mutator) Macro(name Name, op Operation) {
	m.macros.Register(name, op)
}

// Macros returns the macro registry this Mutator resolves against.
func (m *Mutator) Macros() *Macros {
	return m.macros
}

// Mutate splits spec on "|" and applies each stage to value, left to right.
//
// Example:
//
//	result, err := m.Mutate(ctx, "quick red fox", "substr:0,5|uppercase")
//	// result: "QUICK"
func (m *Mutator) Mutate(ctx context.Context, value any, spec string) (any, error) {
	return m.run(ctx, value, strings.Split(spec, PipeDelimiter))
}

// MutateEach applies each element of specs as exactly one stage, in order.
// It is equivalent to Mutate with the elements joined by "|".
func (m *Mutator) MutateEach(ctx context.Context, value any, specs ...string) (any, error) {
	return m.run(ctx, value, specs)
}

// Validate parses and resolves every stage without applying anything.
// Each element of specs is split on "|". Class targets are instantiated,
// exactly as they would be by Mutate.
func (m *Mutator) Validate(specs ...string) error {
	for _, spec := range specs {
		stages, err := m.parse(context.Background(), strings.Split(spec, PipeDelimiter))
		if err != nil {
			return err
		}
		for _, stage := range stages {
			if _, err := m.resolve(context.Background(), stage, len(stages)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Mutator) run(ctx context.Context, value any, specs []string) (result any, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.metrics.Counter(ProcessedTotal).Inc()
	m.metrics.Gauge(StagesTotal).Set(float64(len(specs)))
	start := m.clock.Now()

	ctx, span := m.tracer.StartSpan(ctx, ProcessSpan)
	span.SetTag(TagStageCount, fmt.Sprintf("%d", len(specs)))
	defer func() {
		m.metrics.Gauge(DurationMs).Set(float64(m.clock.Since(start).Milliseconds()))
		if err == nil {
			span.SetTag(TagSuccess, "true")
			m.metrics.Counter(SuccessesTotal).Inc()
		} else {
			span.SetTag(TagSuccess, "false")
			span.SetTag(TagError, err.Error())
			m.metrics.Counter(FailuresTotal).Inc()
		}
		span.Finish()
	}()

	stages, err := m.parse(ctx, specs)
	if err != nil {
		return value, err
	}

	result = value
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return value, err
		}

		op, err := m.resolve(ctx, stage, len(stages))
		if err != nil {
			return value, err
		}

		stageCtx, stageSpan := m.tracer.StartSpan(ctx, StageSpan)
		stageSpan.SetTag(TagStageNumber, fmt.Sprintf("%d", stage.Index+1))
		stageSpan.SetTag(TagTarget, stage.Target)

		stageStart := m.clock.Now()
		out, err := op(stageCtx, result, stage.Args)
		elapsed := m.clock.Since(stageStart)
		if err != nil {
			stageSpan.SetTag(TagSuccess, "false")
			stageSpan.SetTag(TagError, err.Error())
		} else {
			stageSpan.SetTag(TagSuccess, "true")
		}
		stageSpan.Finish()

		_ = m.hooks.Emit(ctx, EventStageComplete, Event{ //nolint:errcheck
			Mutator:     m.name,
			Target:      stage.Target,
			Stage:       stage.Raw,
			StageNumber: stage.Index + 1,
			TotalStages: len(stages),
			Success:     err == nil,
			Error:       err,
			Duration:    elapsed,
			Timestamp:   m.clock.Now(),
		})
		if err != nil {
			return value, err
		}

		m.metrics.Counter(StagesAppliedTotal).Inc()
		result = out
	}
	return result, nil
}

func (m *Mutator) parse(ctx context.Context, specs []string) ([]Stage, error) {
	stages, err := ParseEach(specs...)
	if err != nil {
		var specErr *SpecError
		if errors.As(err, &specErr) {
			specErr.Mutator = m.name
			specErr.Timestamp = m.clock.Now()
		}
		m.resolutionFailed(ctx, specErr, len(specs))
		return nil, err
	}
	return stages, nil
}

// resolve binds a parsed stage to an operation.
func (m *Mutator) resolve(ctx context.Context, stage Stage, total int) (Operation, error) {
	op, err := m.lookup(stage)
	if err != nil {
		specErr := &SpecError{
			Err:       err,
			Mutator:   m.name,
			Stage:     stage.Raw,
			Target:    stage.Target,
			Index:     stage.Index,
			Timestamp: m.clock.Now(),
		}
		m.resolutionFailed(ctx, specErr, total)
		return nil, specErr
	}
	return op, nil
}

func (m *Mutator) lookup(stage Stage) (Operation, error) {
	if stage.IsClassTarget() {
		class, ok := m.classes.Lookup(stage.Class)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownClass, stage.Class)
		}
		return class.Bind(stage.Method)
	}
	if op, ok := m.macros.Lookup(stage.Target); ok {
		return op, nil
	}
	if op, ok := m.methods[stage.Target]; ok {
		return op, nil
	}
	if op, ok := m.functions.Lookup(stage.Target); ok {
		return op, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, stage.Target)
}

func (m *Mutator) resolutionFailed(ctx context.Context, err *SpecError, total int) {
	m.metrics.Counter(ResolutionFailuresTotal).Inc()
	if err == nil {
		return
	}
	_ = m.hooks.Emit(ctx, EventResolutionFailed, Event{ //nolint:errcheck
		Mutator:     m.name,
		Target:      err.Target,
		Stage:       err.Stage,
		StageNumber: err.Index + 1,
		TotalStages: total,
		Error:       err,
		Timestamp:   err.Timestamp,
	})
}

// Metrics returns the metrics registry for this Mutator.
func (m *Mutator) Metrics() *metricz.Registry {
	return m.metrics
}

// Tracer returns the tracer for this Mutator.
func (m *Mutator) Tracer() *tracez.Tracer {
	return m.tracer
}

// OnStageComplete registers a handler called asynchronously after each
// stage is applied, whether it succeeds or fails.
func (m *Mutator) OnStageComplete(handler func(context.Context, Event) error) error {
	_, err := m.hooks.Hook(EventStageComplete, handler)
	return err
}

// OnResolutionFailed registers a handler called asynchronously when a stage
// cannot be parsed or resolved.
func (m *Mutator) OnResolutionFailed(handler func(context.Context, Event) error) error {
	_, err := m.hooks.Hook(EventResolutionFailed, handler)
	return err
}

// Close gracefully shuts down observability components.
func (m *Mutator) Close() error {
	if m.tracer != nil {
		m.tracer.Close()
	}
	m.hooks.Close()
	return nil
}
