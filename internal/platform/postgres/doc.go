// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver. Errors are mapped to store sentinels by SQLSTATE,
// counters are adjusted with single UPDATE statements clamped at zero, and
// the goose schema migrations are embedded in Migrations.
package postgres
