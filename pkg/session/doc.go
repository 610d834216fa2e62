/*
Package session drives workflows against the session store.

It serializes all work on one (actor, chat) session behind a keyed mutex,
garbage-collected by reference counting, so interleaved events from the
same actor cannot race each other's read-modify-write cycle. It also owns
the session lifecycle rules: one active session per key, terminal outcomes
delete, rejected input leaves the cursor alone, and idle sessions are
reaped by a background loop.
*/
package session
