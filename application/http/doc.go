// Package http holds the HTTP/1.1 message syntax shared by the header and body layers:
// start lines, field lines and their text form.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
