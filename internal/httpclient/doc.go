// Package httpclient builds the HTTP requests issued by virtual users and
// provides a tuned http.Client suitable for sustained load generation.
package httpclient
