// Package logging provides the leveled logger used across the thumbnail
// service, plus a request-scoped diagnostic trail.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable
// (DEBUG=true forces debug).
//
// A Trail carries the request ID and the label of the step currently running
// ("resolve source", "extract", ...). It is stored in the request context so
// concurrent requests each keep their own trail:
//
//	ctx, trail := logging.WithTrail(ctx)
//	logging.Step(ctx, "resolve source").Debugf("logical path %q", src)
//	trail.Infof("done")
package logging
