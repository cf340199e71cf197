// Package dispatch routes actions from publishers to subscribers.
//
// ARCHITECTURE:
//
// Each subscriber gets its own unbounded FIFO queue and exactly one worker
// goroutine. Publishers never wait on handlers; a handler never runs
// concurrently with itself. This is what lets the store treat its handler
// as a single critical section without locks of its own.
//
// Event flow:
//  1. Publish() stamps an ID and a seq from the logical Clock
//  2. The action is appended to every subscriber's queue
//  3. Each worker dequeues in order and calls its Handler
//  4. Handler errors are logged and the worker moves on
//
// Handlers may Publish; the new action lands at the back of every queue.
package dispatch
