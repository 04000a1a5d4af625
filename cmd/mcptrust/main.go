package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	internaldns "github.com/jmerrifield20/mcptrust/internal/dns"
	"github.com/jmerrifield20/mcptrust/internal/identity"
	"github.com/jmerrifield20/mcptrust/internal/netguard"
	"github.com/jmerrifield20/mcptrust/pkg/client"
	"github.com/jmerrifield20/mcptrust/pkg/mcpmanifest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultServerURL = "http://localhost:8080"

var (
	serverURL    string
	cfgFile      string
	tokenFlag    string
	insecureFlag bool
	formatFlag   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mcptrust",
	Short: "MCP domain trust CLI",
	Long: `mcptrust is the command-line interface for the MCP trust service.

It proves domain ownership with DNS TXT challenges, checks current ownership
proofs, updates registered servers behind the ownership gate and reports
trust scores.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".mcptrust"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("mcptrust")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = defaultServerURL
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.mcptrust/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "trust service URL (default "+defaultServerURL+")")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "operator token (default: ~/.mcptrust/token if present)")
	rootCmd.PersistentFlags().BoolVar(&insecureFlag, "insecure", false, "Skip TLS certificate verification (development only)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(txtCmd)
	rootCmd.AddCommand(ownershipCmd)
	rootCmd.AddCommand(wellKnownCmd)
	rootCmd.AddCommand(challengeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client from the global flags. The token comes from
// --token, then the token config key, then ~/.mcptrust/token.
func newClient(opts ...client.Option) (*client.Client, error) {
	if insecureFlag {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	token := tokenFlag
	if token == "" {
		token = viper.GetString("token")
	}
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	} else if path := defaultTokenPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			opts = append(opts, client.WithTokenFile(path))
		}
	}
	return client.New(serverURL, opts...)
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, client.DefaultTokenFile)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── txt ──────────────────────────────────────────────────────────────────────

var (
	txtResolvers []string
	txtTimeout   time.Duration
	txtVerbose   bool
)

var txtCmd = &cobra.Command{
	Use:   "txt <name> <expected-value>",
	Short: "Check a TXT record against the resolver pool from this machine",
	Long: `txt queries every resolver in the pool for a TXT record and reports each
resolver's vote and the majority verdict, exactly as the service would:

  mcptrust txt _mcp-challenge.example.com mcp_challenge_AbC123...

The command exits non-zero when a majority of resolvers do not confirm the value.`,
	Args: cobra.ExactArgs(2),
	RunE: runTXT,
}

func init() {
	txtCmd.Flags().StringSliceVar(&txtResolvers, "resolver", internaldns.DefaultResolvers, "Resolver to query (repeatable, at least 3)")
	txtCmd.Flags().DurationVar(&txtTimeout, "timeout", 3*time.Second, "Per-resolver query timeout")
	txtCmd.Flags().BoolVar(&txtVerbose, "verbose", false, "Log every DNS exchange")
}

func runTXT(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	if txtVerbose {
		logger, _ = zap.NewDevelopment()
	}

	pool, err := internaldns.NewPool(internaldns.Config{Resolvers: txtResolvers, QueryTimeout: txtTimeout}, logger)
	if err != nil {
		return err
	}

	tally := pool.Tally(cmd.Context(), args[0], args[1])
	if formatFlag == "json" {
		if err := printJSON(os.Stdout, tallyJSON(tally)); err != nil {
			return err
		}
	} else if err := printTally(os.Stdout, tally); err != nil {
		return err
	}

	if !tally.Verified {
		return fmt.Errorf("not confirmed: %d of %d resolvers agree", tally.Yes, tally.Total)
	}
	return nil
}

type voteRow struct {
	Resolver string `json:"resolver"`
	Yes      bool   `json:"yes"`
	Error    string `json:"error,omitempty"`
}

type tallyRow struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Yes      int       `json:"yes"`
	Total    int       `json:"total"`
	Verified bool      `json:"verified"`
	Votes    []voteRow `json:"votes"`
}

func tallyJSON(t internaldns.Tally) tallyRow {
	out := tallyRow{Name: t.Name, Value: t.Value, Yes: t.Yes, Total: t.Total, Verified: t.Verified}
	for _, v := range t.Votes {
		row := voteRow{Resolver: v.Resolver, Yes: v.Yes}
		if v.Err != nil {
			row.Error = v.Err.Error()
		}
		out.Votes = append(out.Votes, row)
	}
	return out
}

func printTally(w io.Writer, t internaldns.Tally) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOLVER\tVOTE\tERROR")
	for _, v := range t.Votes {
		vote := "no"
		if v.Yes {
			vote = "yes"
		}
		errText := ""
		if v.Err != nil {
			errText = v.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Resolver, vote, errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	verdict := "NOT VERIFIED"
	if t.Verified {
		verdict = "VERIFIED"
	}
	_, err := fmt.Fprintf(w, "\n%s: %d/%d resolvers confirm %s\n", verdict, t.Yes, t.Total, t.Name)
	return err
}

// ── ownership ────────────────────────────────────────────────────────────────

type ownershipRow struct {
	domain string
	result *client.OwnershipResult
	err    error
}

var ownershipCmd = &cobra.Command{
	Use:   "ownership <domain> [domain] ...",
	Short: "Check current ownership proofs for one or more domains",
	Long: `ownership asks the service whether each domain currently proves ownership
through a _mcp-verify TXT record, its /.well-known/mcp document or an _mcp
service record. Multiple domains are checked concurrently:

  mcptrust ownership example.com example.org`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOwnership,
}

func runOwnership(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	resultsCh := make(chan ownershipRow, len(args))
	for _, domain := range args {
		go func() {
			r, err := c.CheckOwnership(ctx, domain)
			resultsCh <- ownershipRow{domain: domain, result: r, err: err}
		}()
	}

	// Collect in input order.
	byDomain := make(map[string]ownershipRow, len(args))
	for range args {
		r := <-resultsCh
		byDomain[r.domain] = r
	}
	ordered := make([]ownershipRow, len(args))
	for i, domain := range args {
		ordered[i] = byDomain[domain]
	}

	if formatFlag == "json" {
		return printOwnershipJSON(os.Stdout, ordered)
	}
	return printOwnershipText(os.Stdout, ordered)
}

func printOwnershipJSON(w io.Writer, rows []ownershipRow) error {
	type jsonRow struct {
		Domain   string `json:"domain"`
		Verified bool   `json:"verified"`
		Method   string `json:"method,omitempty"`
		Details  string `json:"details,omitempty"`
		Error    string `json:"error,omitempty"`
	}
	out := make([]jsonRow, len(rows))
	for i, r := range rows {
		if r.err != nil {
			out[i] = jsonRow{Domain: r.domain, Error: r.err.Error()}
			continue
		}
		v := r.result.Verification
		out[i] = jsonRow{Domain: r.result.Domain, Verified: v.Verified, Method: v.Method, Details: v.Details}
	}
	// Single result: unwrap from array for convenience.
	var v any = out
	if len(out) == 1 {
		v = out[0]
	}
	return printJSON(w, v)
}

func printOwnershipText(w io.Writer, rows []ownershipRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tVERIFIED\tMETHOD\tDETAILS")
	for _, r := range rows {
		if r.err != nil {
			fmt.Fprintf(tw, "%s\t\t\terror: %s\n", r.domain, r.err.Error())
			continue
		}
		v := r.result.Verification
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", r.result.Domain, v.Verified, v.Method, v.Details)
	}
	return tw.Flush()
}

// ── wellknown ────────────────────────────────────────────────────────────────

var (
	wkTimeout     time.Duration
	wkConcurrency int
)

var wellKnownCmd = &cobra.Command{
	Use:   "wellknown <domain> [domain] ...",
	Short: "Fetch /.well-known/mcp from domains directly",
	Long: `wellknown fetches each domain's /.well-known/mcp document from this machine,
with the same size limit and private-address guard the service uses, and
reports which domains publish a usable endpoint:

  mcptrust wellknown example.com example.org`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWellKnown,
}

func init() {
	wellKnownCmd.Flags().DurationVar(&wkTimeout, "timeout", 5*time.Second, "Per-request timeout")
	wellKnownCmd.Flags().IntVar(&wkConcurrency, "concurrency", 8, "Domains fetched in parallel")
}

type wellKnownRow struct {
	Domain    string   `json:"domain"`
	Status    int      `json:"status,omitempty"`
	Endpoint  string   `json:"endpoint,omitempty"`
	Name      string   `json:"name,omitempty"`
	Tools     []string `json:"tools,omitempty"`
	LatencyMS int64    `json:"latency_ms"`
	Error     string   `json:"error,omitempty"`
}

func runWellKnown(cmd *cobra.Command, args []string) error {
	hc := netguard.NewHTTPClient(wkTimeout, false)
	rows := make([]wellKnownRow, len(args))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(wkConcurrency, 1))
	for i, domain := range args {
		g.Go(func() error {
			rows[i] = fetchWellKnown(ctx, hc, domain, mcpmanifest.URL(domain))
			return nil
		})
	}
	_ = g.Wait()

	if formatFlag == "json" {
		return printJSON(os.Stdout, rows)
	}
	return printWellKnown(os.Stdout, rows)
}

// fetchWellKnown never fails; problems are reported in the row.
func fetchWellKnown(ctx context.Context, hc *http.Client, domain, url string) (row wellKnownRow) {
	row.Domain = domain
	start := time.Now()
	defer func() { row.LatencyMS = time.Since(start).Milliseconds() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	defer resp.Body.Close()

	row.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		row.Error = resp.Status
		return row
	}
	doc, err := mcpmanifest.Decode(resp.Body)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	if !doc.HasEndpoint() {
		row.Error = "document has no endpoint"
	}
	row.Endpoint = doc.Endpoint
	row.Name = doc.Name
	for _, t := range doc.Tools {
		row.Tools = append(row.Tools, t.Name)
	}
	return row
}

func printWellKnown(w io.Writer, rows []wellKnownRow) error {
	found := 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tSTATUS\tENDPOINT\tTOOLS\tLATENCY\tERROR")
	for _, r := range rows {
		if r.Error == "" {
			found++
		}
		status := "-"
		if r.Status != 0 {
			status = fmt.Sprint(r.Status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%dms\t%s\n", r.Domain, status, r.Endpoint, len(r.Tools), r.LatencyMS, r.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d/%d domains publish a usable /.well-known/mcp document\n", found, len(rows))
	return err
}

// ── challenge ────────────────────────────────────────────────────────────────

var (
	challengeReason   string
	challengeWait     time.Duration
	challengeInterval time.Duration
)

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Manage DNS ownership challenges",
	Long: `challenge starts, inspects and verifies ownership challenges.

A successful verification of a domain that is already registered removes the
existing registration so the new owner can register it.`,
}

var challengeStartCmd = &cobra.Command{
	Use:   "start <domain>",
	Short: "Start an ownership challenge for a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		res, err := c.StartChallenge(cmd.Context(), args[0], challengeReason)
		if err != nil {
			return fmt.Errorf("start challenge: %w", err)
		}
		if formatFlag == "json" {
			return printJSON(os.Stdout, res)
		}
		printChallenge(os.Stdout, &res.Challenge)
		fmt.Printf("When published, run:\n  mcptrust challenge verify %s\n", res.Challenge.ChallengeID)
		return nil
	},
}

var challengeStatusCmd = &cobra.Command{
	Use:   "status <challenge-id>",
	Short: "Show a pending challenge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.GetChallenge(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get challenge: %w", err)
		}
		if formatFlag == "json" {
			return printJSON(os.Stdout, res)
		}
		fmt.Printf("State: %s\n", res.State)
		printChallenge(os.Stdout, &res.Challenge)
		return nil
	},
}

var challengeVerifyCmd = &cobra.Command{
	Use:   "verify <challenge-id>",
	Short: "Verify a challenge by triggering a resolver-pool TXT lookup",
	Long: `verify asks the service to confirm the challenge TXT record with a majority
of its resolvers. With --wait it keeps retrying until the record propagates:

  mcptrust challenge verify --wait 10m 5b0c...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		fmt.Printf("Verifying challenge %s...\n", args[0])
		res, err := pollVerify(cmd.Context(), c, args[0], challengeWait, challengeInterval)
		if err != nil {
			if errors.Is(err, client.ErrVerificationPending) {
				fmt.Println("TXT record not yet visible to a majority of resolvers. Check propagation and retry.")
				return nil
			}
			return fmt.Errorf("verify: %w", err)
		}
		if formatFlag == "json" {
			return printJSON(os.Stdout, res)
		}
		fmt.Printf("✓ Domain ownership verified for %s\n", res.Domain)
		if res.Transferred {
			fmt.Println("The previous registration was removed; you may now register the domain.")
		}
		return nil
	},
}

// verifier is the subset of *client.Client used by pollVerify.
type verifier interface {
	VerifyChallenge(ctx context.Context, challengeID string) (*client.TransferResult, error)
}

// pollVerify calls VerifyChallenge until it succeeds, fails with anything
// other than ErrVerificationPending, or wait elapses. A zero wait tries once.
func pollVerify(ctx context.Context, c verifier, id string, wait, interval time.Duration) (*client.TransferResult, error) {
	deadline := time.Now().Add(wait)
	for {
		res, err := c.VerifyChallenge(ctx, id)
		if err == nil || !errors.Is(err, client.ErrVerificationPending) {
			return res, err
		}
		if !time.Now().Add(interval).Before(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func printChallenge(w io.Writer, ch *client.Challenge) {
	fmt.Fprintf(w, "Challenge ID: %s\n\n", ch.ChallengeID)
	fmt.Fprintln(w, "Add this DNS TXT record to your domain:")
	fmt.Fprintf(w, "  Host:  %s\n", ch.TXTRecordName)
	fmt.Fprintf(w, "  Type:  TXT\n")
	fmt.Fprintf(w, "  Value: %s\n\n", ch.TXTRecordValue)
	if !ch.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires: %s\n\n", ch.ExpiresAt.Format(time.RFC3339))
	}
}

func init() {
	challengeStartCmd.Flags().StringVar(&challengeReason, "reason", client.ReasonUserRequest,
		"Why the challenge is opened: ownership_transfer, suspicious_activity or user_request")
	challengeVerifyCmd.Flags().DurationVar(&challengeWait, "wait", 0, "Keep retrying for this long while the record propagates")
	challengeVerifyCmd.Flags().DurationVar(&challengeInterval, "interval", 15*time.Second, "Delay between retries with --wait")

	challengeCmd.AddCommand(challengeStartCmd)
	challengeCmd.AddCommand(challengeStatusCmd)
	challengeCmd.AddCommand(challengeVerifyCmd)
}

// ── update / authorize ───────────────────────────────────────────────────────

var (
	updEndpoint     string
	updCapabilities []string
	updEmail        string
	updDescription  string
)

var updateCmd = &cobra.Command{
	Use:   "update <domain>",
	Short: "Update a registered server behind the ownership gate",
	Long: `update changes a registered server. Only flags that are set are sent.

Endpoint changes, core capability changes and large capability changes need
current ownership proof. Without it nothing is changed and a challenge is
printed instead:

  mcptrust update example.com --endpoint https://mcp2.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update := updateFromFlags(cmd)
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.UpdateServer(cmd.Context(), args[0], update)
		if err != nil {
			return fmt.Errorf("update server: %w", err)
		}
		return printUpdateResult(os.Stdout, res)
	},
}

// updateFromFlags builds a ServerUpdate from the flags the user actually set.
func updateFromFlags(cmd *cobra.Command) client.ServerUpdate {
	var u client.ServerUpdate
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		u.Endpoint = &updEndpoint
	}
	if flags.Changed("capabilities") {
		caps := append([]string{}, updCapabilities...)
		u.Capabilities = &caps
	}
	if flags.Changed("email") {
		u.ContactEmail = &updEmail
	}
	if flags.Changed("description") {
		u.Description = &updDescription
	}
	return u
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize <domain>",
	Short: "Check whether a new registration for a domain may proceed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.AuthorizeRegistration(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("authorize: %w", err)
		}
		return printUpdateResult(os.Stdout, res)
	},
}

func printUpdateResult(w io.Writer, res *client.UpdateResult) error {
	if formatFlag == "json" {
		return printJSON(w, res)
	}
	if res.VerificationRequired && res.Challenge != nil {
		fmt.Fprintln(w, "Ownership proof required; nothing was changed.")
		fmt.Fprintln(w)
		printChallenge(w, res.Challenge)
		fmt.Fprintf(w, "When published, run:\n  mcptrust challenge verify %s\n", res.Challenge.ChallengeID)
		return nil
	}
	if res.Verification != nil {
		fmt.Fprintf(w, "✓ Ownership verified via %s\n", res.Verification.Method)
	}
	fmt.Fprintln(w, res.Message)
	return nil
}

func init() {
	updateCmd.Flags().StringVar(&updEndpoint, "endpoint", "", "New https endpoint (empty clears it)")
	updateCmd.Flags().StringSliceVar(&updCapabilities, "capabilities", nil, "Full replacement capability list")
	updateCmd.Flags().StringVar(&updEmail, "email", "", "Contact email")
	updateCmd.Flags().StringVar(&updDescription, "description", "", "Description")
}

// ── trust ────────────────────────────────────────────────────────────────────

var trustCmd = &cobra.Command{
	Use:   "trust <domain>",
	Short: "Probe a registered server and show its trust score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.TrustScore(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("trust score: %w", err)
		}
		if formatFlag == "json" {
			return printJSON(os.Stdout, res)
		}
		return printTrust(os.Stdout, res)
	},
}

func printTrust(w io.Writer, res *client.TrustResult) error {
	fmt.Fprintf(w, "Domain:   %s\n", res.Domain)
	if res.Endpoint != "" {
		fmt.Fprintf(w, "Endpoint: %s\n", res.Endpoint)
	}
	fmt.Fprintf(w, "Score:    %d (%s)\n\n", res.Report.Score, res.Report.Level)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNAL\tPOINTS")
	for _, a := range res.Report.Adjustments {
		fmt.Fprintf(tw, "%s\t%+d\n", a.Signal, a.Points)
	}
	return tw.Flush()
}

// ── history ──────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history <domain>",
	Short: "Show the ownership audit trail for a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.History(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		if formatFlag == "json" {
			return printJSON(os.Stdout, res)
		}
		return printHistory(os.Stdout, res)
	},
}

func printHistory(w io.Writer, res *client.AuditHistory) error {
	if len(res.Entries) == 0 {
		_, err := fmt.Fprintf(w, "No ownership events recorded for %s\n", res.Domain)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTIME\tACTION\tACTOR\tHASH")
	for _, e := range res.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Index, e.Timestamp.Format(time.RFC3339), e.Action, e.Actor, shortHash(e.Hash))
	}
	return tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSecret  string
	tokenSubject string
	tokenIssuer  string
	tokenTTL     time.Duration
	tokenScopes  []string
	tokenSave    bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token signed with the server's shared secret",
	Long: `token issues an HS256 operator token for the mutating API routes. The
secret must match the server's auth.jwt_secret; it is read from --secret or
the MCPTRUST_JWT_SECRET environment variable.

  MCPTRUST_JWT_SECRET=... mcptrust token --subject ops@example.com --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = viper.GetString("jwt_secret")
		}
		if tokenSubject == "" {
			return fmt.Errorf("--subject is required")
		}

		issuer, err := identity.NewTokenIssuer(secret, tokenIssuer, tokenTTL)
		if err != nil {
			return err
		}
		token, err := issuer.Issue(tokenSubject, tokenScopes)
		if err != nil {
			return err
		}

		if tokenSave {
			path := defaultTokenPath()
			if path == "" {
				return fmt.Errorf("cannot locate home directory for --save")
			}
			if err := client.SaveToken(path, token); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Token saved to %s (expires in %s)\n", path, issuer.TTL())
			return nil
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Shared HMAC secret (default $MCPTRUST_JWT_SECRET)")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject, e.g. the operator's email")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "mcptrust", "Issuer; must match the server's server.issuer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil,
		"Scope to grant (repeatable; default "+strings.Join(identity.DefaultScopes, ",")+")")
	tokenCmd.Flags().BoolVar(&tokenSave, "save", false, "Write the token to ~/"+client.DefaultTokenFile+" instead of stdout")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mcptrust CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mcptrust %s\n", version)
	},
}
