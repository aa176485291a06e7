// Package api holds the HTTP handlers of the FitHub API. Handlers decode and
// validate requests, call the services and translate their errors into
// status codes without leaking internal details.
package api
