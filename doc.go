// Package auth implements a minimal bearer-token authentication API:
// user registration, login, and password reset backed by a pluggable
// identity store, with JWT issuance and validation.
//
// Token issuance:
//   - TokenService signs HS256 tokens carrying the authenticated subject,
//     a random token identifier (jti), and a bounded expiry. The signing
//     key is loaded once at startup; an empty key is a fatal configuration
//     error, never a per-request one.
//
// Identity store:
//   - IdentityStore is a capability, not a concrete type. The bundled
//     implementation persists users and one-time password-reset artifacts
//     through Bun repositories; any backend (in-memory, SQL, external IdP)
//     can satisfy the interface.
//
// HTTP surface:
//   - AuthController exposes /users/create, /users/login,
//     /users/reset-password, /users/test-authentication and /users/info on
//     a Fiber router. Protected routes sit behind the middleware/jwtware
//     guard, which hands validated claims to handlers via request locals.
//
// Login and reset failures intentionally collapse to a single generic
// message so responses never reveal whether an account exists.
package auth
