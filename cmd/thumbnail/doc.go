// Command thumbnail extracts thumbnails from the command line using the same
// pipeline as the HTTP server.
//
// Usage:
//
//	thumbnail extract --src <path> --dest <path> --size 256 [--format jpeg] [--mode live]
//	thumbnail resolve [--dest] <path>
//
// Output is human-readable on a terminal and JSON otherwise; --json forces
// JSON. Configuration is read the same way as the server (see package
// startup), and --config names a YAML file.
//
// The exit status is 0 when a thumbnail was written or the content is not
// supported, and 1 on any failure.
package main
