// Package metrics provides the observability hooks for pipeline and server
// activity.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so callers never nil-check:
//
//	p := pipeline.New(cfg, composer, factory) // uses metrics.NoopRecorder{}
//	p.WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder registers its collectors on the registry it is given and
// HTTPHandler exposes that registry for scraping.
package metrics
