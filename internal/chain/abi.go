package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const aggregatorV3ABI = `[
 {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"name":"latestRoundData","type":"function","stateMutability":"view","inputs":[],"outputs":[
  {"name":"roundId","type":"uint80"},
  {"name":"answer","type":"int256"},
  {"name":"startedAt","type":"uint256"},
  {"name":"updatedAt","type":"uint256"},
  {"name":"answeredInRound","type":"uint80"}]}
]`

const uniswapV3PoolABI = `[
 {"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"name":"token1","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"name":"observe","type":"function","stateMutability":"view","inputs":[{"name":"secondsAgos","type":"uint32[]"}],"outputs":[
  {"name":"tickCumulatives","type":"int56[]"},
  {"name":"secondsPerLiquidityCumulativeX128s","type":"uint160[]"}]},
 {"name":"slot0","type":"function","stateMutability":"view","inputs":[],"outputs":[
  {"name":"sqrtPriceX96","type":"uint160"},
  {"name":"tick","type":"int24"},
  {"name":"observationIndex","type":"uint16"},
  {"name":"observationCardinality","type":"uint16"},
  {"name":"observationCardinalityNext","type":"uint16"},
  {"name":"feeProtocol","type":"uint8"},
  {"name":"unlocked","type":"bool"}]},
 {"name":"observations","type":"function","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[
  {"name":"blockTimestamp","type":"uint32"},
  {"name":"tickCumulative","type":"int56"},
  {"name":"secondsPerLiquidityCumulativeX128","type":"uint160"},
  {"name":"initialized","type":"bool"}]}
]`

const erc20ABI = `[
 {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const bondAggregatorABI = `[
 {"name":"getAuctioneer","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

var (
	aggregatorV3 = mustParseABI(aggregatorV3ABI)
	uniswapPool  = mustParseABI(uniswapV3PoolABI)
	erc20        = mustParseABI(erc20ABI)
	bondAgg      = mustParseABI(bondAggregatorABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}
