// Package routes discovers route declarations on disk and binds them to
// handlers registered in Go.
//
// The routes directory holds one subdirectory per feature. Every file in a
// feature directory whose name ends in ".route.hcl" declares one route:
//
//	method = "get"
//	url    = "/users/:id"
//	route  = "users.show"
//
// The route attribute names a handler previously registered through a
// RouteProvider. Express-style ":param" segments are accepted and
// translated to router variables.
package routes
