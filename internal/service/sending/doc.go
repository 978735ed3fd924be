// Package sending is the facade campaign runners talk to.
//
// It combines the warm-up store, the capacity tracker, the health
// classifier and the selection engine behind one Service. The Service is
// also the engine's Gate: the same combined check answers CanSend and
// filters candidates during selection.
//
// A send must pass both gates: the warm-up quota from the identity's
// WarmupRecord and the configured hourly/daily ceiling enforced by the
// capacity tracker. Identities come from a Registry; implementations live in
// repository/postgres/ and repository/memory/.
package sending
