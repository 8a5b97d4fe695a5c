// Package auth decides who may connect and what they may touch.
//
// Authentication is public-key only. An Authenticator chains AuthProviders;
// the production provider is a KeyStore that reads OpenSSH authorized_keys
// files from the object store under the reserved ".ssh/" prefix.
//
// Authorization is path based. An Authorizer confines each Identity either
// to its home directory or to the whole bucket, optionally read-only, and
// never lets any session reach the reserved prefix.
//
// Host keys for the SSH server are loaded by LoadHostKeys.
package auth
