// Package domain defines the core types of the warm-up scheduler: sending
// identities, warm-up records and the derived health advice.
//
// Types in this package are pure value objects with no behavior beyond
// validation, no store dependencies, and no HTTP concerns. They are the
// shared language between the warm-up store, the capacity tracker, the
// classifier and the selection engine.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No store clients, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
