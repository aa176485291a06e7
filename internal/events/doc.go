// Package events decouples services from the background task system.
//
// Services emit TaskRequestEvents describing work to be done later, such as
// publishing a notification or deleting stored objects. Handlers registered
// on an EventEmitter turn those events into persisted tasks.
package events
