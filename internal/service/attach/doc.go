// Package attach uploads a batch of images to object storage in parallel and
// attaches the successful uploads to their parent content.
//
// A batch runs on a bounded pool scoped to the call, is bounded by a grace
// period, preserves input order, and reports per-image failures instead of
// dropping them.
package attach
