// Package loader registers template files from a directory or any fs.FS.
//
// Template names are slash-separated paths relative to the root with the
// extension removed, so partials can be referenced by path:
//
//	templates/
//	  table.hbs            -> "table"
//	  partials/row.hbs     -> "partials/row"
//
//	l := loader.New(".hbs", logger)
//	names, err := l.LoadDir(reg, "templates")
//
// Templates embedded with go:embed load the same way through LoadFS.
package loader
