// Package chain reads price feeds, pools, tokens and the bond aggregator over
// Ethereum JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// ContractCaller is the read-only subset of ethclient.Client the readers use.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client wraps an ethclient connection.
type Client struct {
	eth    *ethclient.Client
	logger *slog.Logger
}

// Dial connects to the JSON-RPC endpoint at url and checks the chain id when
// wantChainID is non-zero.
func Dial(ctx context.Context, url string, wantChainID uint64, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial: %w", err)
	}
	id, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if wantChainID != 0 && id.Uint64() != wantChainID {
		eth.Close()
		return nil, fmt.Errorf("chain: connected to chain %s, want %d", id, wantChainID)
	}

	logger = logger.With(slog.String("component", "chain"))
	logger.Info("rpc connected", slog.String("chain_id", id.String()))
	return &Client{eth: eth, logger: logger}, nil
}

// Reader returns a domain.ChainReader backed by this connection.
func (c *Client) Reader() *Reader { return NewReader(c.eth) }

// Aggregator returns the bond aggregator at addr.
func (c *Client) Aggregator(addr common.Address) *Aggregator { return NewAggregator(c.eth, addr) }

// Ping reports whether the node answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.eth.BlockNumber(ctx); err != nil {
		return fmt.Errorf("chain: ping: %w", err)
	}
	return nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Reader resolves on-chain collaborators by address. Handles are cheap and
// hold no state beyond the address.
type Reader struct {
	caller ContractCaller
}

// NewReader creates a Reader over any ContractCaller.
func NewReader(caller ContractCaller) *Reader { return &Reader{caller: caller} }

func (r *Reader) PriceFeed(addr common.Address) domain.PriceFeed {
	return &Feed{contract: contract{caller: r.caller, addr: addr, abi: aggregatorV3}}
}

// SequencerFeed returns the L2 sequencer uptime feed at addr.
func (r *Reader) SequencerFeed(addr common.Address) domain.SequencerFeed {
	return &Feed{contract: contract{caller: r.caller, addr: addr, abi: aggregatorV3}}
}

func (r *Reader) Pool(addr common.Address) domain.Pool {
	return &Pool{contract: contract{caller: r.caller, addr: addr, abi: uniswapPool}}
}

func (r *Reader) Token(addr common.Address) domain.Token {
	return &Token{contract: contract{caller: r.caller, addr: addr, abi: erc20}}
}

// contract binds an ABI to an address for eth_call.
type contract struct {
	caller ContractCaller
	addr   common.Address
	abi    abi.ABI
}

func (c contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	to := c.addr
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, c.addr.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: call %s on %s: empty result", method, c.addr.Hex())
	}
	vals, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s from %s: %w", method, c.addr.Hex(), err)
	}
	return vals, nil
}

var _ domain.ChainReader = (*Reader)(nil)
