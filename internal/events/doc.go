// Package events provides types and interfaces for an event-driven architecture.
//
// Services can emit events without knowing which handlers will process them.
// The review coordinator publishes ReviewRecorded after every persisted
// review; the statistics cache subscribes to drop stale summaries.
package events
