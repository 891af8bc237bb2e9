// Package utils provides small helpers shared by the repositories and handlers.
//
//   - GenerateToken: opaque random tokens from crypto/rand, base64url encoded
//   - IsUniqueViolation: detects PostgreSQL unique index conflicts (SQLSTATE 23505)
//   - ParsePageRequest / Page: zero-based paging with "field,dir" sort terms
//
// Sort fields are always checked against a caller-supplied whitelist before they
// reach SQL, so they can be interpolated into ORDER BY safely.
package utils
