// Package vault manages in-memory encryption keys and the encrypted
// envelopes built with them.
//
// Keys live only in process memory. A password-derived key persists its
// salt, algorithm and a verifier in the metadata table so that the same
// password re-derives the same key and a wrong password is detected before
// anything is decrypted with it. SecureStorage layers an encrypted keyed map
// over the unified store.
package vault
