package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/bondoracle/internal/crypto"
	"github.com/alanyoungcy/bondoracle/internal/oracle"
)

var errUnknownCommand = errors.New("unknown command")

// run dispatches one subcommand. Output goes to out.
func run(cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "address":
		return cmdAddress(args, out)
	case "encrypt-key":
		return cmdEncryptKey(args, out)
	case "encode-feed":
		return cmdEncodeFeed(args, out)
	case "encode-twap":
		return cmdEncodeTWAP(args, out)
	case "set-pair":
		return cmdSetPair(args, out)
	case "set-auctioneer":
		return cmdSetAuctioneer(args, out)
	case "register":
		return cmdRegister(args, out)
	case "transfer-owner":
		return cmdTransferOwner(args, out)
	case "snapshot":
		return cmdSnapshot(args, out)
	case "request":
		return cmdRequest(args, out)
	case "help", "-h", "--help":
		_, err := fmt.Fprint(out, usage)
		return err
	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd)
	}
}

// keyFlags are shared by every command that signs.
type keyFlags struct {
	key      *string
	keyFile  *string
	password *string
}

func addKeyFlags(fs *flag.FlagSet) keyFlags {
	return keyFlags{
		key:      fs.String("key", os.Getenv("BONDORACLE_WALLET_PRIVATE_KEY"), "hex private key"),
		keyFile:  fs.String("key-file", os.Getenv("BONDORACLE_WALLET_ENCRYPTED_KEY_PATH"), "encrypted key file"),
		password: fs.String("password", os.Getenv("BONDORACLE_WALLET_KEY_PASSWORD"), "key file password"),
	}
}

func (k keyFlags) signer() (*crypto.Signer, error) {
	return crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    *k.key,
		EncryptedKeyPath: *k.keyFile,
		KeyPassword:      *k.password,
	})
}

// serverFlags are shared by every command that talks to the server.
type serverFlags struct {
	keyFlags
	url    *string
	apiKey *string
}

func addServerFlags(fs *flag.FlagSet) serverFlags {
	url := os.Getenv("BONDORACLE_URL")
	if url == "" {
		url = "http://localhost:8000"
	}
	return serverFlags{
		keyFlags: addKeyFlags(fs),
		url:      fs.String("url", url, "oracle server base URL"),
		apiKey:   fs.String("api-key", os.Getenv("BONDORACLE_SERVER_API_KEY"), "static API key, if the server requires one"),
	}
}

func (s serverFlags) client() (*client, error) {
	signer, err := s.signer()
	if err != nil {
		return nil, err
	}
	return newClient(*s.url, *s.apiKey, signer), nil
}

func cmdAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	kf := addKeyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := kf.signer()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, signer.Address().Hex())
	return err
}

func cmdEncryptKey(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ContinueOnError)
	key := fs.String("key", os.Getenv("BONDORACLE_WALLET_PRIVATE_KEY"), "hex private key to encrypt")
	password := fs.String("password", os.Getenv("BONDORACLE_WALLET_KEY_PASSWORD"), "encryption password")
	outPath := fs.String("out", "", "write the key file here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	blob, err := crypto.EncryptKey(*key, *password)
	if err != nil {
		return err
	}
	if *outPath == "" {
		_, err = fmt.Fprintln(out, string(blob))
		return err
	}
	if err := os.WriteFile(*outPath, blob, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	_, err = fmt.Fprintf(out, "wrote %s\n", *outPath)
	return err
}

func cmdEncodeFeed(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode-feed", flag.ContinueOnError)
	payoutFeed := fs.String("payout-feed", "", "payout token price feed")
	payoutTol := fs.Uint64("payout-tolerance", 3600, "payout feed staleness tolerance, seconds")
	quoteFeed := fs.String("quote-feed", "", "quote token price feed (empty for single-feed mode)")
	quoteTol := fs.Uint64("quote-tolerance", 3600, "quote feed staleness tolerance, seconds")
	decimals := fs.Uint("decimals", 18, "price decimals")
	invert := fs.Bool("invert", false, "return the reciprocal price")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := oracle.FeedPairConfig{
		PayoutStaleTolerance: *payoutTol,
		QuoteStaleTolerance:  *quoteTol,
		Invert:               *invert,
	}
	var err error
	if cfg.PayoutFeed, err = parseAddress("payout-feed", *payoutFeed); err != nil {
		return err
	}
	if *quoteFeed != "" {
		if cfg.QuoteFeed, err = parseAddress("quote-feed", *quoteFeed); err != nil {
			return err
		}
	} else {
		cfg.QuoteStaleTolerance = 0
	}
	if cfg.Decimals, err = parseDecimals(*decimals); err != nil {
		return err
	}

	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hexutil.Encode(data))
	return err
}

func cmdEncodeTWAP(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode-twap", flag.ContinueOnError)
	numerator := fs.String("numerator", "", "numerator pool")
	denominator := fs.String("denominator", "", "denominator pool (empty for single-pool mode)")
	window := fs.Uint("window", 1800, "observation window, seconds")
	decimals := fs.Uint("decimals", 18, "price decimals")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := oracle.TWAPPairConfig{ObservationWindowSeconds: uint32(*window)}
	if uint64(*window) > uint64(^uint32(0)) {
		return fmt.Errorf("window %d overflows uint32", *window)
	}
	var err error
	if cfg.NumeratorPool, err = parseAddress("numerator", *numerator); err != nil {
		return err
	}
	if *denominator != "" {
		if cfg.DenominatorPool, err = parseAddress("denominator", *denominator); err != nil {
			return err
		}
	}
	if cfg.Decimals, err = parseDecimals(*decimals); err != nil {
		return err
	}

	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hexutil.Encode(data))
	return err
}

func cmdSetPair(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-pair", flag.ContinueOnError)
	sf := addServerFlags(fs)
	quote := fs.String("quote", "", "quote token")
	payout := fs.String("payout", "", "payout token")
	supported := fs.Bool("supported", true, "false removes the pair")
	config := fs.String("config", "0x", "hex config payload from encode-feed or encode-twap")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q, err := parseAddress("quote", *quote)
	if err != nil {
		return err
	}
	p, err := parseAddress("payout", *payout)
	if err != nil {
		return err
	}
	if _, err := hexutil.Decode(*config); err != nil && *config != "0x" {
		return fmt.Errorf("config: %w", err)
	}
	return send(sf, out, http.MethodPut, "/api/pairs/"+q.Hex()+"/"+p.Hex(),
		map[string]any{"supported": *supported, "config": *config})
}

func cmdSetAuctioneer(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-auctioneer", flag.ContinueOnError)
	sf := addServerFlags(fs)
	address := fs.String("address", "", "auctioneer address")
	enabled := fs.Bool("enabled", true, "enable or disable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := parseAddress("address", *address)
	if err != nil {
		return err
	}
	return send(sf, out, http.MethodPut, "/api/auctioneers/"+addr.Hex(), map[string]any{"enabled": *enabled})
}

func cmdRegister(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	sf := addServerFlags(fs)
	market := fs.String("market", "", "market id")
	quote := fs.String("quote", "", "quote token")
	payout := fs.String("payout", "", "payout token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := strconv.ParseUint(*market, 10, 64)
	if err != nil {
		return fmt.Errorf("market: %w", err)
	}
	q, err := parseAddress("quote", *quote)
	if err != nil {
		return err
	}
	p, err := parseAddress("payout", *payout)
	if err != nil {
		return err
	}
	return send(sf, out, http.MethodPost, "/api/markets",
		map[string]any{"market_id": id, "quote": q.Hex(), "payout": p.Hex()})
}

func cmdTransferOwner(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("transfer-owner", flag.ContinueOnError)
	sf := addServerFlags(fs)
	owner := fs.String("owner", "", "new owner address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := parseAddress("owner", *owner)
	if err != nil {
		return err
	}
	return send(sf, out, http.MethodPut, "/api/owner", map[string]any{"owner": addr.Hex()})
}

func cmdSnapshot(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	sf := addServerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return send(sf, out, http.MethodPost, "/api/admin/snapshot", nil)
}

func cmdRequest(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("request", flag.ContinueOnError)
	sf := addServerFlags(fs)
	method := fs.String("method", http.MethodGet, "HTTP method")
	path := fs.String("path", "/api/health", "request path")
	body := fs.String("body", "", "raw JSON body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := sf.client()
	if err != nil {
		return err
	}
	resp, err := c.do(strings.ToUpper(*method), *path, []byte(*body))
	if err != nil {
		return err
	}
	_, err = out.Write(append(resp, '\n'))
	return err
}

func send(sf serverFlags, out io.Writer, method, path string, body any) error {
	c, err := sf.client()
	if err != nil {
		return err
	}
	var raw []byte
	if body != nil {
		if raw, err = json.Marshal(body); err != nil {
			return err
		}
	}
	resp, err := c.do(method, path, raw)
	if err != nil {
		return err
	}
	_, err = out.Write(append(resp, '\n'))
	return err
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseDecimals(d uint) (uint8, error) {
	if d < uint(oracle.MinDecimals) || d > uint(oracle.MaxDecimals) {
		return 0, fmt.Errorf("decimals must be in [%d, %d], got %d", oracle.MinDecimals, oracle.MaxDecimals, d)
	}
	return uint8(d), nil
}
