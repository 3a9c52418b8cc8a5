// Package auth provides the authentication and authorization primitives used
// by the protected TodoList resource. It focuses on bearer token (JWT)
// verification for services that delegate authorization to an external
// OAuth 2.0 / OIDC authorization server.
//
// The public surface intentionally stays small: an Authenticator validates an
// incoming bearer token string and returns a Principal (or an error), and
// RequireScope gates access to a protected operation on a delegation scope.
// The HTTP layer is responsible for extracting the token from the request and
// mapping sentinel errors into status codes and challenges.
//
// # Access Token Authentication
//
// NewFromDiscovery constructs an Authenticator that validates JWT access
// tokens using OpenID Connect discovery to obtain the issuer's JWKS and
// metadata. Callers configure validation knobs via functional options
// (allowed algorithms, leeway).
//
// Example:
//
//	ctx := context.Background()
//	authn, err := auth.NewFromDiscovery(ctx, "https://issuer.example", "https://api.example/todolist")
//	if err != nil { log.Fatal(err) }
//
//	// Later inside request handling (pseudocode):
//	p, err := authn.CheckAuthentication(r.Context(), bearerToken)
//	if errors.Is(err, auth.ErrUnauthorized) { /* map to 401 challenge */ }
//	subject, err := auth.RequireScope(p, "user_impersonation")
//
// # Scopes
//
// A Principal carries the set of delegation scopes granted to the calling
// client, parsed from the space-delimited "scp" (or "scope") claim.
// RequireScope demands that the exact required scope string be present; there
// is no scope hierarchy or wildcard matching. The check is evaluated on every
// call and its outcome is never cached.
//
// # Errors
//
// ErrUnauthorized signals the token is invalid (signature, expiry, audience,
// etc.). ErrInsufficientScope signals successful authentication but a missing
// required scope. Both are matched with errors.Is.
package auth
