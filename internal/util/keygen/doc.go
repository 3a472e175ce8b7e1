// Package keygen generates SSH key pairs for instance access.
//
// Keys are produced in PEM format (private) and OpenSSH authorized_keys
// format (public), suitable for EC2 ImportKeyPair.
package keygen
