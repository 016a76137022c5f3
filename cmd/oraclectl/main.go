// Command oraclectl is the operator CLI for a bondoracle server. It signs
// and sends owner and auctioneer requests, encodes pair config payloads and
// manages the encrypted signing key.
package main

import (
	"fmt"
	"os"
)

const usage = `usage: oraclectl <command> [flags]

commands:
  address          print the address of the configured key
  encrypt-key      encrypt a hex private key into a key file
  encode-feed      encode a feed/l2feed pair config
  encode-twap      encode a twap pair config
  set-pair         PUT /api/pairs/{quote}/{payout}
  set-auctioneer   PUT /api/auctioneers/{address}
  register         POST /api/markets
  transfer-owner   PUT /api/owner
  snapshot         POST /api/admin/snapshot
  request          sign and send an arbitrary request

Key flags (-key, -key-file, -password) fall back to BONDORACLE_WALLET_*.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "oraclectl: %v\n", err)
		os.Exit(1)
	}
}
