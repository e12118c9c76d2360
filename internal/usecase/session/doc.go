// Package session tracks the lifecycle of review suggestions for a set of
// files: which are pending, approved or rejected, and the cumulative file
// content after each approval.
//
// Approvals for the same file are serialized; approvals for different files
// proceed independently. Lookups and progress computation are safe for any
// number of concurrent readers. A failed approval leaves all state exactly
// as it was before the call.
package session
