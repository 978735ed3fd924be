// Package health classifies sending identities.
//
// Everything here is a pure function of an Identity, a Provider and the
// current time: provider detection from the relay host, the coarse warm-up
// status, the 0-100 health score and the advisory report built from them.
// Nothing in this package reads or writes a store.
package health
