// Package objectstore stores uploaded images in S3-compatible object storage.
// S3Store talks to the bucket; Breaker and Thumbnailer decorate any Store.
package objectstore
