// Package httpapi exposes the account engine over HTTP with gin.
//
// Routes:
//
//	POST /register   create an account
//	POST /login      OAuth2 password form (username, password) or JSON
//	POST /refresh    exchange a refresh token for a new pair
//	GET  /me         current profile (bearer)
//	PUT  /me         partial profile update (bearer)
//	POST /logout     revoke outstanding access tokens (bearer)
//	GET  /healthz    store reachability
//	GET  /metrics    Prometheus text exposition, when configured
//
// Errors are written as {"detail": "..."}. Login failures are coarsened:
// unknown accounts and wrong passwords both read "Invalid credentials".
package httpapi
