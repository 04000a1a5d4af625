// Package client is the Go SDK for the MCP trust service.
//
// It wraps the HTTP API that proves domain ownership, gates server updates
// and reports trust scores.
//
// # Read-only checks
//
// Ownership checks and trust scores are public:
//
//	c, _ := client.New("https://trust.example.com")
//	res, err := c.CheckOwnership(ctx, "example.com")
//	fmt.Println(res.Verification.Verified, res.Verification.Method)
//
//	score, err := c.TrustScore(ctx, "example.com")
//	fmt.Println(score.Report.Score, score.Report.Level)
//
// Add caching with WithCacheTTL to avoid repeated ownership lookups:
//
//	c, _ := client.New(baseURL, client.WithCacheTTL(30*time.Second))
//
// # Proving ownership
//
// Mutating calls need an operator token when the server has auth enabled.
// Pass it directly or load it from a file written by 'mcptrust token':
//
//	c, _ := client.New(baseURL, client.WithTokenFile(os.ExpandEnv("$HOME/.mcptrust/token")))
//
//	ch, _ := c.StartChallenge(ctx, "example.com", client.ReasonOwnershipTransfer)
//	// ... publish ch.Challenge.TXTRecordValue at ch.Challenge.TXTRecordName ...
//	res, err := c.VerifyChallenge(ctx, ch.Challenge.ChallengeID)
//	if errors.Is(err, client.ErrVerificationPending) {
//	    // record not visible to a majority of resolvers yet; retry later
//	}
//
// # Updating a server
//
// UpdateServer never fails because ownership is unproven. Instead the result
// carries VerificationRequired and a fresh challenge:
//
//	endpoint := "https://mcp2.example.com"
//	res, err := c.UpdateServer(ctx, "example.com", client.ServerUpdate{Endpoint: &endpoint})
//	if err == nil && res.VerificationRequired {
//	    fmt.Println(res.Message)
//	}
package client
