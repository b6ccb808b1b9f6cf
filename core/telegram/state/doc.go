// Package state tracks conversation states per (chat, user) pair. States are
// persisted through the persistence backend under a named conversation, so a
// restarted bot resumes every dialog where it stopped.
package state
