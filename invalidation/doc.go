// Package invalidation keeps cached reads consistent with backend writes.
//
// Every successful create, update or delete of a domain entity is followed,
// before the write returns, by removal of every cache entry that could now be
// stale. Enumerable keys are removed individually; list views keyed by
// arbitrary filter combinations are covered by prefix clears or by clearing
// everything scoped to the acting user. An unnecessary miss is acceptable,
// serving stale data is not.
//
// Callers wrap writes with Write:
//
//	a, err := invalidation.Write(ctx, inv, invalidation.Event{
//		Entity:   invalidation.EntityAssignment,
//		Action:   invalidation.ActionUpdate,
//		EntityID: a.ID,
//		Scope:    scope,
//	}, func(ctx context.Context) (Assignment, error) {
//		return backend.UpdateAssignment(ctx, a)
//	})
package invalidation
