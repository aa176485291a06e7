// Package task manages background job queuing, processing, and lifecycle.
// Tasks are persisted before they are queued so push notifications and
// object cleanup survive restarts; a Registry rebuilds executable tasks from
// their stored type and payload.
package task
