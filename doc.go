// Package pbosign allows to parse PBO archives and to sign and verify them with BI keys, as done
// by the official tools for game mods.
//
// A signature (.bisign) is made of three RSA values computed over SHA-1 digests of the archive:
// the checksum written by the packer, the entry names, and the contents of the entries selected
// by the signature version. Keys are stored in two proprietary formats: .biprivatekey for the
// signer and .bikey for the public part distributed to servers.
//
// This package comes with a CLI. You can install it like this:
//   go install github.com/connesc/pbosign/cmd/pbosign@latest
package pbosign
