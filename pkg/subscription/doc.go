// Package subscription tracks which callbacks are interested in which
// channels on one client connection.
//
// A channel is subscribed upstream while at least one callback is
// registered for it. The registry reports the transitions (first callback
// added, last callback removed) so the connection can send exactly one
// subscribe and one unsubscribe envelope per lifetime of an entry.
//
// Subscriptions do not survive connection loss. ClearAll drops every
// entry; callers re-subscribe after reconnecting.
package subscription
