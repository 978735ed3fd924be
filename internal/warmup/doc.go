// Package warmup owns the per-identity warm-up ramp.
//
// ramp.go holds the pure quota math: given a WarmupRecord and the current
// local date it derives the daily limit, the phase and the days left. The
// functions keep no state, so a record can always be re-evaluated from its
// persisted fields alone.
//
// store.go persists records in a kvstore.Store under "warmup:<id>" and
// performs the day rollover on every read. sweeper.go runs the same
// rollover nightly for identities that did not send.
package warmup
