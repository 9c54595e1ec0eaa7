// Package notifier delivers remote notifications off the processing path.
//
// Jobs are queued and sent by a single worker so that remote messages keep
// the order in which they were logged. A token bucket bounds the send rate.
// A failed send is reported (log, event bus, optional store) and never
// retried: a stale AFK alert is worse than a missing one.
package notifier
