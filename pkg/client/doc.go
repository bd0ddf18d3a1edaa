// Package client is the Go SDK for the star notary HTTP API.
//
// Registering a star is a three step exchange: request a challenge for your
// wallet address, sign it with the wallet key, and submit the signed
// challenge together with the star before the validation window closes.
//
//	c, _ := client.New("http://localhost:8080")
//	vr, err := c.RequestValidation(ctx, address)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sig, _ := challenge.Sign(vr.Message, key) // or any personal_sign wallet
//	block, err := c.RegisterStar(ctx, client.RegisterStarRequest{
//	    Address:   address,
//	    Message:   vr.Message,
//	    Signature: sig,
//	    Star:      client.Star{RA: "16h 29m 1.0s", Dec: "-26° 29' 24.9", Story: "..."},
//	})
//
// Lookups return ErrNotFound when the block does not exist:
//
//	block, err := c.GetBlock(ctx, 42)
//	if errors.Is(err, client.ErrNotFound) { ... }
package client
