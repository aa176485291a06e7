// Package store defines the persistence interfaces used by the services.
// Implementations live in internal/platform/postgres. Every store can be
// rebound to a transaction with WithTx so services compose several writes
// atomically through RunInTransaction.
package store
