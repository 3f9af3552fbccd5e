// Package cel provides a CEL (Common Expression Language) evaluator for
// template conditions.
//
// Expressions see two variables: this, the data scope current at the point
// of evaluation, and root, the data the render started with. Compiled
// programs are cached by expression text.
//
// Example usage:
//
//	evaluator := cel.NewEvaluator(logger)
//
//	vars := map[string]interface{}{
//	    "this": map[string]interface{}{"pts": 12},
//	    "root": map[string]interface{}{"season": "2024"},
//	}
//
//	ok, err := evaluator.EvaluateBool(ctx, "this.pts > 10", vars)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// In templates the evaluator backs the when block helper:
//
//	{{#when "this.pts >= 3 && root.season == '2024'"}}promoted{{else}}-{{/when}}
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >= (int, uint and double compare freely)
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - Arithmetic: +, -, *, /, %
//   - List operations: in, size
//   - Map access: this.field, root["field"]
package cel
