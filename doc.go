// Package accounts implements the account lifecycle of a server rendered
// web application: registration, email confirmation, login with lockout,
// logout, forgotten and reset passwords, and sign in through external
// providers.
//
// Collaborators:
//   - IdentityStore owns accounts, credentials and pending action tokens.
//     See the identity package for a bun backed implementation.
//   - SessionSigner owns the session cookie, the lockout policy during
//     sign in and the external login handshake. See the session package.
//   - EmailSender delivers the confirmation and reset links. See mailer.
//
// AccountFlow sequences calls to these collaborators and returns an
// Outcome (render a view, redirect locally, or send the browser to a
// provider). AccountController maps outcomes onto go-router responses.
//
// Activity sinks:
//   - ActivitySink receives an event for every lifecycle step. Sinks run
//     best-effort (errors are logged). The metrics package ships a
//     Prometheus backed sink.
package accounts
