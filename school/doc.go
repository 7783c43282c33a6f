// Package school holds the data-access functions screens call. Reads go
// through the cached-fetch contract with a preset chosen by how often the
// data changes; writes go through the invalidation protocol so a write that
// returns success has already dropped every stale entry.
package school
