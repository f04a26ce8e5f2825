// Package blade compiles Blade-style markup into an executable document and
// renders it against runtime bindings.
//
// Templates mix literal markup with directives, echo regions and component
// tags:
//
//	@extends('layouts.app')
//
//	@section('content')
//	    <x-alert type="info">Welcome, {{ $name }}</x-alert>
//	    @foreach($users as $user)
//	        <li>{{ $user.name }}</li>
//	    @endforeach
//	@endsection
//
// # Basic Usage
//
//	loader, _ := blade.NewFilesystemLoader("./views")
//	engine := blade.MustNew(blade.WithLoader(loader))
//	out, err := engine.Render(ctx, "home", map[string]any{"name": "Ada", "users": users})
//
// # Pipeline
//
// Compilation runs three passes over the source. Wrapper regions such as
// {{ ... }} and @section(...) ... @endsection are matched first, longest
// prefix first. Directives (@if, @include, @extends, ...) follow in sequence
// order. Component tags (<x-name>) are expanded last, repeatedly, until
// none are left. Each pass emits compiled fragments:
//
//	<?blade echo "$user.name" ?>
//
// Fragments are opaque to every later pass. The compiled document is parsed
// into an instruction tree and executed in an isolated unit whose failures are
// reported as an ErrorTrace pointing at the logical line of the template that
// produced the failing instruction, across includes, sections and layouts.
//
// # Custom Directives
//
//	engine := blade.MustNew(blade.WithDirectives(func(e *blade.Engine) error {
//	    return e.RegisterDirective("upper", func(c *blade.Compilation, expr, _ string) (string, error) {
//	        return c.CompileString("{{ upper(" + expr + ") }}")
//	    }, blade.ArityExpression, blade.SequenceDefault, false)
//	}))
//
// # Modes
//
// In ModeProduction a missing include or component renders as nothing. In
// ModeDevelopment it renders as an HTML comment naming the template, the
// candidates tried and similar template names.
package blade
