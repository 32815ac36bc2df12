// Package middleware installs the middlewares declared in the server
// configuration. Installers are looked up by name in a Registry and run
// concurrently; each one receives an App handle bound to its declaration
// slot so the resulting chain keeps the configured order.
package middleware
