// Package srs implements SM-2 style spaced-repetition scheduling.
//
// Advance is a pure function from (prior state, quality rating, now) to the
// next state; Classifier derives mastery tiers from a state. Neither performs
// I/O, and all constants come from Params and Classifier values supplied by
// the caller.
package srs
