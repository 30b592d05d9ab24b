// Package mutator resolves textual transformation specs and applies them to
// values, typically model attribute values on read or write.
//
// # Overview
//
// A spec names one or more stages. Each stage is a target plus optional
// literal arguments:
//
//	"strtoupper"                        // one global function
//	"substr:0,5|uppercase"              // two stages, applied left to right
//	"billing.Money@format:EUR"          // a method on a registered class
//
// Sequence-form specs pass each stage as its own string:
//
//	m.MutateEach(ctx, v, "substr:5,10", "strtoupper", "clip:4")
//
// # Installation
//
//	go get github.com/zoobzio/mutator
//
// # Grammar
//
//	stage      := target (":" args)?
//	target     := identifier | class "@" identifier
//	class      := identifier (("\" | "." | "/") identifier)*
//	args       := arg ("," arg)*
//	identifier := [A-Za-z0-9_]+
//
// Arguments are always literal strings. There is no quoting, escaping or
// type inference; an operation converts its own arguments through Args and
// supplies its own defaults for the ones that were left out.
//
// # Resolution
//
// Targets resolve against explicit registries, never through reflection:
//
//   - Classes: "Class@method" looks the class up by identifier. Static
//     members bind directly; instance methods must be public and the class
//     must be constructible without arguments.
//   - Macros: user-registered operations shared by every Mutator that uses
//     the same *Macros.
//   - Methods: operations defined on the Mutator itself with WithMethod.
//   - Functions: global free functions, by default the Builtins table.
//
// Anything that does not parse or resolve fails with an error matching
// ErrInvalidSpecification. Errors returned by the operations themselves are
// passed through untouched.
//
// # Quick Start
//
//	clip := mutator.Strings(func(s string, args mutator.Args) (string, error) {
//	    n, err := args.Int(0, 5)
//	    if err != nil {
//	        return "", err
//	    }
//	    return string([]rune(s)[:min(n, len([]rune(s)))]), nil
//	})
//
//	m := mutator.New(mutator.WithMethod("clip", clip))
//	defer m.Close()
//
//	m.Macro("shout", mutator.Strings(func(s string, _ mutator.Args) (string, error) {
//	    return strings.ToUpper(s) + "!", nil
//	}))
//
//	out, err := m.Mutate(ctx, "quick red fox", "clip:3|shout")
//	// out: "QUI!"
//
// # Error Handling
//
//	_, err := m.Mutate(ctx, v, "jibberrish!@#$%^&*(")
//	if errors.Is(err, mutator.ErrInvalidSpecification) {
//	    var specErr *mutator.SpecError
//	    errors.As(err, &specErr)
//	    log.Printf("stage %d (%s): %v", specErr.Index+1, specErr.Stage, specErr.Err)
//	}
package mutator
