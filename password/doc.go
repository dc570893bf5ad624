// Package password generates policy-conformant random passwords for
// recovery flows that deliver a fresh credential out-of-band.
//
// # Architecture boundaries
//
// This package owns generation only. Where the generated password goes
// (directory write, token delivery) is decided by the Engine.
//
// # What this package must NOT do
//
//   - Store or log generated passwords.
//   - Import any other goRecover package.
//   - Use math/rand for character selection.
package password
