// Package errors provides the classified error type used across appserve.
//
// Every startup failure is a ClassifiedError carrying a category that decides
// how the process reacts: configuration, discovery and build errors are fatal
// and abort startup; rebuild errors raised while the development server is
// already listening are warnings and only get reported.
//
// Example usage:
//
//	err := errors.ConfigError("unknown middleware").
//		WithContext("name", name).
//		Build()
package errors
