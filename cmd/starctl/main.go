package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jmerrifield20/starledger/internal/challenge"
	"github.com/jmerrifield20/starledger/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	keyFile   string
	cfgFile   string
	timeout   time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "starctl",
	Short: "Star notary CLI",
	Long: `starctl registers stars on a star notary ledger and looks them up.

Ownership of a wallet address is proven by signing a short-lived challenge
issued by the server; starctl can hold the signing key itself (see keygen)
or you can sign the challenge with any personal_sign compatible wallet.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".starctl"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("starctl")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if keyFile == "" {
			keyFile = viper.GetString("key_file")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.starctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "notary server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "hex-encoded secp256k1 private key file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(challengeCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(starsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	return client.New(serverURL, client.WithTimeout(timeout))
}

func loadKey() (*ecdsa.PrivateKey, error) {
	if keyFile == "" {
		return nil, errors.New("no key file: pass --key or set key_file in the config")
	}
	key, err := crypto.LoadECDSA(keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", keyFile, err)
	}
	return key, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── keygen ──────────────────────────────────────────────────────────────────

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a wallet key and print its address",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(keygenOut); err == nil {
			return fmt.Errorf("%s already exists; refusing to overwrite", keygenOut)
		}
		key, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(keygenOut), 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
		if err := crypto.SaveECDSA(keygenOut, key); err != nil {
			return fmt.Errorf("save key: %w", err)
		}
		fmt.Printf("Key written to %s\nAddress: %s\n", keygenOut, challenge.AddressOf(key))
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOut, "out", "starctl.key", "where to write the private key")
}

// ── challenge ───────────────────────────────────────────────────────────────

var challengeCmd = &cobra.Command{
	Use:   "challenge <address>",
	Short: "Request a challenge message for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		vr, err := c.RequestValidation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Message: %s\nSign it within %ds.\n", vr.Message, vr.ValidationWindow)
		return nil
	},
}

// ── sign ────────────────────────────────────────────────────────────────────

var signCmd = &cobra.Command{
	Use:   "sign <message>",
	Short: "Sign a challenge message with the configured key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := loadKey()
		if err != nil {
			return err
		}
		sig, err := challenge.Sign(args[0], key)
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil
	},
}

// ── register ────────────────────────────────────────────────────────────────

var (
	regStar      client.Star
	regMessage   string
	regSignature string
	regAddress   string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a star for your address",
	Long: `Register a star on the ledger.

With --key, starctl requests a challenge, signs it and submits the star in
one step:

  starctl register --key starctl.key --ra "16h 29m 1.0s" --dec "-26° 29' 24.9" --story "Found it"

Without a key, pass a challenge already signed by your wallet:

  starctl register --address 0x... --message "0x...:1700000000:starRegistry" --signature 0x... ...`,
	RunE: runRegister,
}

func init() {
	f := registerCmd.Flags()
	f.StringVar(&regStar.RA, "ra", "", "right ascension (required)")
	f.StringVar(&regStar.Dec, "dec", "", "declination (required)")
	f.StringVar(&regStar.Magnitude, "mag", "", "magnitude")
	f.StringVar(&regStar.Constellation, "cen", "", "constellation")
	f.StringVar(&regStar.Story, "story", "", "story, ASCII, at most 500 bytes (required)")
	f.StringVar(&regAddress, "address", "", "wallet address (when not using --key)")
	f.StringVar(&regMessage, "message", "", "signed challenge message (when not using --key)")
	f.StringVar(&regSignature, "signature", "", "challenge signature (when not using --key)")
	_ = registerCmd.MarkFlagRequired("ra")
	_ = registerCmd.MarkFlagRequired("dec")
	_ = registerCmd.MarkFlagRequired("story")
}

func runRegister(cmd *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req := client.RegisterStarRequest{
		Address:   regAddress,
		Message:   regMessage,
		Signature: regSignature,
		Star:      regStar,
	}

	if req.Signature == "" {
		key, err := loadKey()
		if err != nil {
			return err
		}
		req.Address = challenge.AddressOf(key)
		vr, err := c.RequestValidation(ctx, req.Address)
		if err != nil {
			return fmt.Errorf("request validation: %w", err)
		}
		req.Message = vr.Message
		if req.Signature, err = challenge.Sign(vr.Message, key); err != nil {
			return err
		}
	}

	block, err := c.RegisterStar(ctx, req)
	if errors.Is(err, client.ErrExpiredChallenge) {
		return fmt.Errorf("%w; run 'starctl challenge' again and re-sign", err)
	}
	if err != nil {
		return err
	}
	return printJSON(block)
}

// ── block ───────────────────────────────────────────────────────────────────

var blockCmd = &cobra.Command{
	Use:   "block <height>",
	Short: "Show the block at a height",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		height, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || height < 0 {
			return fmt.Errorf("height must be a non-negative integer")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		b, err := c.GetBlock(cmd.Context(), height)
		if err != nil {
			return err
		}
		return printJSON(b)
	},
}

// ── stars ───────────────────────────────────────────────────────────────────

var starsByHash string

var starsCmd = &cobra.Command{
	Use:   "stars [address]",
	Short: "List stars registered by an address, or look one up with --hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if starsByHash != "" {
			b, err := c.StarByHash(ctx, starsByHash)
			if err != nil {
				return err
			}
			return printJSON(b)
		}
		if len(args) == 0 {
			return errors.New("pass an address or --hash")
		}

		blocks, err := c.StarsByAddress(ctx, args[0])
		if err != nil {
			return err
		}
		return printStars(blocks)
	},
}

func init() {
	starsCmd.Flags().StringVar(&starsByHash, "hash", "", "look up a single star block by hash")
}

func printStars(blocks []client.Block) error {
	if len(blocks) == 0 {
		fmt.Println("No stars registered.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HEIGHT\tRA\tDEC\tSTORY\tHASH")
	for i := range blocks {
		sb, err := blocks[i].StarBody()
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			blocks[i].Height, sb.Star.RA, sb.Star.Dec, sb.Star.StoryDecoded, blocks[i].Hash)
	}
	return w.Flush()
}

// ── verify ──────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the whole chain on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		ov, err := c.Overview(ctx)
		if err != nil {
			return err
		}
		res, err := c.Verify(ctx)
		if err != nil {
			return err
		}
		if !res.Valid {
			for _, p := range res.Problems {
				fmt.Println("  -", p)
			}
			return fmt.Errorf("chain is INVALID at height %d (%d problems)", ov.Height, len(res.Problems))
		}
		fmt.Printf("Chain valid. Height %d, tip %s\n", ov.Height, ov.Tip)
		return nil
	},
}

// ── version ─────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the starctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("starctl", version)
	},
}
