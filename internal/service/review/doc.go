// Package review coordinates a single review event: it checks the card with
// the content system, reads the learner's current state, advances it with
// the scheduling algorithm, and writes it back under an optimistic version
// check. Successful reviews are announced on the event emitter.
package review
