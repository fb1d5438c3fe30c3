// Package errors provides the classified error primitives used across refbuilder.
//
// A ClassifiedError carries a broad category (config, fetch, build, publish, ...),
// a severity, and structured context. Stage errors raised by the build pipeline
// expose the same categories through the Categorized interface so the CLI can
// pick an exit code without knowing every concrete type.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryConfig, "repository not configured").
//		WithContext("repository", "acme/site").
//		Build()
package errors
