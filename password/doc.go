// Package password implements password hashing and verification with bcrypt
// and argon2id.
//
// # Output format
//
// bcrypt hashes use the standard modular crypt format ($2a$/$2b$). argon2id
// hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// with salt and hash in unpadded standard base64. Parameters must be in
// canonical form; anything else is ErrMalformedHash.
//
// [Auto] hashes with one configured algorithm and verifies either format, so a
// deployment can switch algorithms without invalidating stored hashes.
// NeedsUpgrade reports hashes that should be rewritten on the next successful
// login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// and maximum length) is enforced by the Engine.
package password
