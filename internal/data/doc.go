// Package data decodes template data files into value.Value.
//
// JSON files may carry comments and trailing commas (JSONC). Object keys
// keep the order they have in the document, so {{#each}} over a mapping
// iterates in file order.
//
// Example usage:
//
//	v, err := data.ReadFile("league.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := reg.Render("table", v)
package data
