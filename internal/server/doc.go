// Package server hosts the application: asset pipeline middlewares first,
// then the declared middlewares in configuration order, then discovered
// routes, then a JSON not-found fallback.
package server
