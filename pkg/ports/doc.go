// Package ports defines the interfaces between the workflow core and its
// external collaborators: the entity store, the session store, the chat
// transport, and the role resolver. Adapters implement these; the core only
// ever sees the interfaces.
package ports
