// Package client implements the signed HTTP client side of
// federation: fetching remote actor documents and sending activities
// to remote inboxes.
//
// Every request the client sends is signed, GETs included. The Client
// type satisfies keyring.ActorFetcher, so the usual wiring is
//
//	c, _ := client.New(client.Config{Signer: signer})
//	resolver, _ := keyring.NewCachingResolver(keyring.Config{Fetcher: c})
package client
