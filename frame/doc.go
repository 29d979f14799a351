// Package frame holds the single-slot cache for the most recently
// captured encoded frame.
//
// Exactly one current frame exists at a time. Publish atomically
// replaces it; Snapshot hands out copies. Both operations take the
// slot lock with a short bounded wait and degrade (skip, report busy)
// instead of blocking, so the capture loop's timing budget is never
// held hostage by a reader.
package frame
