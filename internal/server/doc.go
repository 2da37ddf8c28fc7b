// Package server serves stored test reports over HTTP.
//
// "sightline serve" starts it over the reports directory so runs can be
// browsed from another machine. Every route except the login form is
// password protected.
//
// # Endpoints
//
//   - GET / - index of stored runs, newest first
//   - GET /login, POST /auth - password login; sets a session cookie and
//     returns the token as JSON for API clients
//   - GET /api/runs - the index as JSON
//   - GET /reports/{dir}/... - files of one run (report.html, screenshots)
//
// # Authentication
//
// The password is stored as an argon2id hash (see package auth). A token is
// accepted from the session cookie or an "Authorization: Bearer" header.
// Login attempts are rate limited per client IP.
package server
