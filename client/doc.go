// Package client implements the calling side of the delegated-authorization
// flow: acquiring a resource-scoped access token (silently from a per-session
// cache, escalating to an interactive flow when needed) and invoking the
// protected API with it, honoring the claims-challenge convention.
//
// A claims challenge is a 403 response with Content-Type text/plain whose
// body is an opaque payload the authorization server understands. When the
// invoker sees one it re-runs token acquisition carrying the challenge, then
// retries the original call exactly once. Any other failure (other statuses,
// repeated challenges, transport errors) is terminal for that call.
//
// Per-user state (the signed-in identity, the token cache) lives in an
// explicit Session value rather than process-wide globals, so concurrent
// sessions never share tokens.
package client
