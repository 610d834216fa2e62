// Package domain contains the core entities of the signup engine: actors,
// listings, applications, conversation sessions, and the inbound/outbound
// message shapes exchanged with the chat transport.
//
// The package has no dependencies. Persistence, transport, and workflow
// mechanics live behind the interfaces in pkg/ports.
package domain
