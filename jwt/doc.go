// Package jwt manages signed recovery markers: previous-session proof tokens
// issued at authentication time and OAuth state tokens issued at redirect
// time, both verified with configured signing keys and strict validation
// semantics.
package jwt
