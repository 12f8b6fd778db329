// Package crypto supplies the identity key material the connection
// manager derives channel identifiers from.
//
// Keys are NaCl crypto_box pairs; the public key's hex encoding is the
// client's address on the relay. Payload encryption itself happens
// elsewhere; this package only generates, loads and exposes keys.
//
// Example:
//
//	id, err := crypto.GenerateIdentity()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("address:", hex.EncodeToString(id.PublicKey()))
package crypto
