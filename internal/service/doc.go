// Package service implements the application use cases: publishing and
// browsing content, comments, likes and saves, and user accounts.
//
// Services coordinate the stores in internal/store inside transactions, run
// image uploads through attach.Uploader, flip relations through
// reconcile.Reconciler and hand follow-up work (notifications, object
// cleanup) to the task system by emitting events. They depend on store
// interfaces only, never on a concrete database.
package service
