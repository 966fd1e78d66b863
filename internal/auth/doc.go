// Package auth provides user accounts, Argon2id password hashing, and
// JWT access tokens.
package auth
