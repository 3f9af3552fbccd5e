// Package value provides the structured data model templates are rendered against.
//
// A Value is an immutable tagged union of null, bool, number, string, array and
// insertion-ordered object. Helpers that derive data build new Values instead of
// mutating existing ones.
//
// Example usage:
//
//	data := value.Object(
//	    value.Field{Key: "name", Value: value.String("X")},
//	    value.Field{Key: "pts", Value: value.Int(5)},
//	)
//
//	pts, _ := data.Get("pts")
//	fmt.Println(pts.Render()) // "5"
//	fmt.Println(pts.Truthy()) // true
//
// Plain Go data can be converted with FromGo:
//
//	v, err := value.FromGo(map[string]interface{}{"teams": []interface{}{"a", "b"}})
package value
