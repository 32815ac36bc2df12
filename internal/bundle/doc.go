// Package bundle composes the bundler configuration for each runtime mode.
//
// A base BuildConfig carries the resolve settings, the ordered transform rules
// and the environment-freezing Define plugin. Mode variants are produced by
// structurally merging an overlay onto a copy of the base: development adds hot
// replacement, the dashboard and hot-client entries; production adds one HTML
// shell per layout, minification and style extraction. Nothing in this package
// touches the filesystem; the Bundler interface is the boundary to the engine.
package bundle
