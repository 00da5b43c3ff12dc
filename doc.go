// Package coophub provides a Go client SDK for the Smart Cooperative Hub,
// a multi-tenant platform for managing cooperatives and their marketplace.
//
// The client talks to the hub's REST API under /api, keeps the signed-in
// session in a pluggable Store, retries rate-limited requests, and can open
// a websocket for chat message push.
//
// Basic usage:
//
//	client, err := coophub.New(coophub.WithEnvironment(coophub.Production))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Sign in; the token is stored and sent on later calls
//	if _, err := client.Login(ctx, coophub.LoginParams{
//	    Email:    "manager@example.com",
//	    Password: "secret",
//	}); err != nil {
//	    log.Fatal(coophub.ErrorMessage(err))
//	}
//
//	// Cached for five minutes
//	trending, err := client.TrendingProducts(ctx, 8)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, p := range trending {
//	    fmt.Println(p.Name, p.Price)
//	}
//
// Any 401 response clears the stored session and, if a Navigator is
// configured, sends it to /login.
package coophub
