// Package screens builds conversational UIs out of screens.
//
// A screen produces a description and an inline keyboard and renders itself
// either as a new message or by editing the message whose button was
// pressed. Buttons point at handlers or at screen transitions; pressing one
// sends a callback token that the bot resolves back to the handler, wrapped
// in the configured permission chain. Screens keep no per-user fields: all
// per-user data lives in the persistence backend reachable from Context.
package screens
