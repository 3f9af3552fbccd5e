// Package template provides a Handlebars-style template engine with
// pluggable helpers and decorators.
//
// Templates are compiled once into an AST and stored by name in a Registry
// together with helpers and decorators. Each render walks the AST with its
// own RenderContext, so one Registry serves concurrent renders.
//
// Example usage:
//
//	reg := template.NewRegistry(template.WithLogger(logger))
//
//	reg.RegisterHelper("format", template.ValueFunc(func(call *template.Call) (value.Value, error) {
//	    return value.String(call.Value(0).Render() + " pts"), nil
//	}))
//
//	if err := reg.RegisterTemplate("row", "{{name}} has {{format pts}}"); err != nil {
//	    log.Fatal(err)
//	}
//
//	data := value.Object(
//	    value.Field{Key: "name", Value: value.String("X")},
//	    value.Field{Key: "pts", Value: value.Int(5)},
//	)
//	out, err := reg.Render("row", data)
//	// out == "X has 5 pts"
//
// Decorators run for their effect on the RenderContext. A helper they
// register shadows the registered one for the rest of the enclosing block
// only, and is never visible inside partials:
//
//	{{format pts}}            # global helper
//	{{#each teams}}
//	  {{*suffix "goals"}}     # installs a local format
//	  {{format pts}}          # local helper
//	{{/each}}
//
// Ad-hoc template strings go through Engine, which caches compiled
// templates by source:
//
//	engine := template.NewEngine()
//	result, err := engine.Render("Priority: {{uppercase state.priority}}", data)
//
// Built-in helpers:
//   - if, unless - Conditional blocks (hash includeZero=true treats 0 as true)
//   - each - Iterate arrays and objects (@index, @key, @first, @last)
//   - with - Rebind this
//   - lookup - Dynamic field or index access
//   - log - Log params through zap (hash level)
//   - uppercase, lowercase, trim - String transforms
//   - default - Fallback for null or empty values
//   - eq, ne, gt, gte, lt, lte - Comparisons
//   - and, or, not - Boolean logic
//   - contains - Substring or array membership
//   - join - Join array items with a separator
//   - len - Length of array/string/object
//   - markdown - CommonMark to HTML (raw output)
//   - sanitize - Strip unsafe HTML (raw output)
//   - when - CEL condition block, registered with WithCEL
//
// Built-in decorators:
//   - inline - {{#*inline "name"}}...{{/inline}} defines a local partial
package template
