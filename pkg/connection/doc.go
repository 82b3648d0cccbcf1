// Package connection keeps a consumer attached to a producer.
//
// A Supervisor dials the producer, builds an interaction.Client on the new
// port, lets the caller re-establish its subscriptions, and runs the client
// until the port fails. It then waits out an exponential backoff and dials
// again.
//
// # Reconnection Strategy
//
//  1. Initial delay: 250 milliseconds
//  2. Exponential increase by a factor of 2
//  3. Maximum delay: 10 seconds
//  4. Reset to the initial delay once a session is set up
//
// # Jitter
//
// To keep many consumers from redialing in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A failed setup (for example a rejected subscribe) counts as a failed
// attempt and does not reset the backoff.
package connection
