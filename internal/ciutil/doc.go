// Package ciutil detects continuous-integration environments and resolves
// the database URL used by integration tests.
package ciutil
