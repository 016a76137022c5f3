package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondoracle/internal/crypto"
	"github.com/alanyoungcy/bondoracle/internal/oracle"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestAddress(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run("address", []string{"-key", testKey}, &out))
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", strings.TrimSpace(out.String()))
}

func TestEncodeFeedRoundTrips(t *testing.T) {
	var out bytes.Buffer
	err := run("encode-feed", []string{
		"-payout-feed", "0x0000000000000000000000000000000000000001",
		"-quote-feed", "0x0000000000000000000000000000000000000002",
		"-decimals", "8",
	}, &out)
	require.NoError(t, err)

	data, err := hexutil.Decode(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	want, err := oracle.FeedPairConfig{
		PayoutFeed:           common.HexToAddress("0x01"),
		PayoutStaleTolerance: 3600,
		QuoteFeed:            common.HexToAddress("0x02"),
		QuoteStaleTolerance:  3600,
		Decimals:             8,
	}.Encode()
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestEncodeRejectsBadInput(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run("encode-feed", []string{"-payout-feed", "nope"}, &out))
	assert.Error(t, run("encode-twap", []string{
		"-numerator", "0x0000000000000000000000000000000000000001",
		"-decimals", "30",
	}, &out))
	assert.ErrorIs(t, run("bogus", nil, &out), errUnknownCommand)
}

func TestSetAuctioneerSendsSignedRequest(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		unix, err := strconv.ParseInt(r.Header.Get(crypto.HeaderTimestamp), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		addr, err := crypto.RecoverRequestSigner(r.Method, r.URL.Path, unix, body, r.Header.Get(crypto.HeaderSignature))
		if err != nil || addr.Hex() != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run("set-auctioneer", []string{
		"-url", srv.URL,
		"-key", testKey,
		"-api-key", "secret",
		"-address", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "/api/auctioneers/0x70997970C51812dc3A010C7d01b50e0d17dc79C8", gotPath)
	assert.Contains(t, out.String(), `"ok":true`)
}

func TestRequestSurfacesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run("snapshot", []string{"-url", srv.URL, "-key", testKey}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
