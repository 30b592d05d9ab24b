package mutator

import (
	"context"

	"github.com/spf13/cast"
)

// Name is a type alias for target, macro, class and mutator names.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
//
// Example:
//
//	const (
//	    SlugMacro   mutator.Name = "slug"
//	    MoneyClass  mutator.Name = "billing.Money"
//	)
type Name = string

// Operation is the resolved, invocable form of a stage. The value being
// mutated is always the first input; the literal arguments parsed from the
// stage's ":arg1,arg2" suffix follow in order.
//
// Operations apply their own defaults for trailing arguments that were not
// supplied. The Mutator passes exactly what was parsed and nothing more.
//
// An Operation may return any value. Whatever it returns becomes the input
// of the next stage. Errors are returned to the caller of Mutate unchanged.
type Operation func(ctx context.Context, value any, args Args) (any, error)

// Transform creates an Operation from a function that cannot fail.
//
// Example:
//
//	double := mutator.Transform(func(v any, _ mutator.Args) any {
//	    return cast.ToInt(v) * 2
//	})
func Transform(fn func(value any, args Args) any) Operation {
	return func(_ context.Context, value any, args Args) (any, error) {
		return fn(value, args), nil
	}
}

// Apply creates an Operation from a function that may fail. It exists
// mostly for symmetry with Transform; any func with the matching signature
// already is an Operation.
func Apply(fn func(ctx context.Context, value any, args Args) (any, error)) Operation {
	return fn
}

// Strings creates an Operation that works on the string form of the value.
// Values that cannot be represented as a string fail the stage.
//
// Example:
//
//	shout := mutator.Strings(func(s string, args mutator.Args) (string, error) {
//	    return strings.ToUpper(s) + args.String(0, "!"), nil
//	})
func Strings(fn func(s string, args Args) (string, error)) Operation {
	return func(_ context.Context, value any, args Args) (any, error) {
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return fn(s, args)
	}
}

// Unary adapts a plain single-argument function. Any parsed arguments
// are ignored, which mirrors callables that accept fewer arguments than
// they are given.
func Unary(fn func(value any) any) Operation {
	return func(_ context.Context, value any, _ Args) (any, error) {
		return fn(value), nil
	}
}
