// Package sign implements the two Filecoin signature schemes.
//
// Keys are selected by KeyType:
//
//   - secp256k1: the input is hashed with blake2b-256 and signed with a
//     recoverable ECDSA signature, serialized as R || S || V (65 bytes).
//   - bls: the input is signed directly with a BLS12-381 min-pk signature
//     (96 bytes) under BLSDomainSeparationTag. Private keys are stored
//     little-endian and reversed before use.
//
// Signers are given message CID bytes, not the serialized message.
//
// Usage
//
//	signer, err := sign.NewSigner(sign.KeyTypeSecp256k1, privateKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sig, err := signer.Sign(cidBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Signer:", signer.PublicKey().Address())
package sign
