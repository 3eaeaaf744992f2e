// Package apiutil turns ordinary functions into JSON API endpoints.
package apiutil

import (
	"net/http"
)

// HTTPError is an error that includes an HTTP status code.
type HTTPError interface {
	error
	// The HTTP status code
	Status() int
}

// NewHandler creates a handler to service a particular API endpoint.
//
// The parameter, handlerFunc, must be a function taking one parameter,
// the input to the API, and returning 2 values, the output and an error.
//
// If handlerFunc's parameter is a url.Values type, the returned handler
// passes the URL parameters of the API request to handlerFunc. Otherwise
// the handler decodes the request body as JSON into a value of the
// parameter's type.
//
// The returned handler sends the value handlerFunc returns as JSON. If
// handlerFunc returns a non nil error, the handler sends a JSON error
// object with a 400 status code, or with whatever Status() returns if
// the error is an HTTPError.
func NewHandler(handlerFunc interface{}) http.Handler {
	return newHandler(handlerFunc)
}
