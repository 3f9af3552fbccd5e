// Package store keeps template sources in a Redis hash.
//
// Each field of the hash is a template name and its value the template
// source. Put compiles a template before saving it, so the hash only ever
// holds templates that register cleanly.
//
// Example usage:
//
//	s := store.New(redisClient, "templates", logger)
//	if err := s.Put(ctx, "partials/row", "[{{name}}]"); err != nil {
//	    log.Fatal(err)
//	}
//	names, err := s.RegisterAll(ctx, reg)
package store
