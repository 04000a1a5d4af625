// Package identity issues and checks the operator tokens that guard the
// mutating trust API routes.
//
// It provides:
//   - TokenIssuer: issues and verifies HS256 operator JWTs
//   - RequireToken: Gin middleware enforcing a Bearer operator token
package identity
