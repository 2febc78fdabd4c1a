// Package client is the vouchd Go SDK.
//
// It covers the whole API surface: recording and removing vouches, reading
// reputation views, navigating paginated history, and administering
// community settings, blacklists, and exports.
//
// # Authenticating
//
// Every call except token minting carries an actor bearer token. Either
// attach an existing token:
//
//	c := client.MustNew("https://vouchd.example.com",
//	    client.WithBearerToken(os.Getenv("VOUCHD_TOKEN")))
//
// or exchange the operator bootstrap secret for one; MintToken stores the
// result on the client so subsequent calls are authenticated:
//
//	c := client.MustNew("https://vouchd.example.com")
//	_, err := c.MintToken(ctx, secret, "user_123", "Alice", "0001", false)
//
// # Recording a vouch
//
//	v, err := c.CreateVouch(ctx, "community_1", "user_456", "fast and fair trade")
//
// # Browsing history
//
// ListVouches serves a page by index; the response carries a signed cursor
// that Navigate follows with "next" or "prev". Cursors are bound to the
// actor that received them and expire, so fetch a fresh page rather than
// storing them.
//
//	page, err := c.ListVouches(ctx, "community_1", "user_456", 0)
//	next, err := c.Navigate(ctx, "community_1", "user_456", page.Cursor, "next")
//
// # Administration
//
// Settings, blacklist, purge, and export calls succeed only for actors the
// server recognizes as elevated in the community; everyone else receives a
// 403, surfaced here as an error carrying the server's message.
package client
