package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Request authentication headers.
const (
	HeaderSignature = "X-Oracle-Signature"
	HeaderTimestamp = "X-Oracle-Timestamp"
)

// ErrBadSignature reports a malformed or unrecoverable request signature.
var ErrBadSignature = errors.New("crypto: bad signature")

// Signer signs oracle API requests with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded private key, with or without
// a 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the address the signer's requests recover to.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignRequest returns the hex signature (r || s || v, v in {27,28}) of a
// request, as sent in HeaderSignature.
func (s *Signer) SignRequest(method, path string, timestamp int64, body []byte) (string, error) {
	sig, err := ethcrypto.Sign(RequestDigest(method, path, timestamp, body), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RequestHeaders signs a request stamped with the current time and returns
// the authentication headers to attach.
func (s *Signer) RequestHeaders(method, path string, body []byte) (map[string]string, error) {
	return s.RequestHeadersAt(method, path, body, time.Now().Unix())
}

// RequestHeadersAt is RequestHeaders with a caller-supplied Unix timestamp.
func (s *Signer) RequestHeadersAt(method, path string, body []byte, unixTS int64) (map[string]string, error) {
	sig, err := s.SignRequest(method, path, unixTS, body)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderSignature: sig,
		HeaderTimestamp: strconv.FormatInt(unixTS, 10),
	}, nil
}

// RequestDigest is the EIP-191 personal-message hash of
// keccak256(method || path || timestamp || body).
func RequestDigest(method, path string, timestamp int64, body []byte) []byte {
	inner := ethcrypto.Keccak256(concatBytes(
		[]byte(strings.ToUpper(method)),
		[]byte(path),
		[]byte(strconv.FormatInt(timestamp, 10)),
		body,
	))
	return accounts.TextHash(inner)
}

// RecoverRequestSigner returns the address that produced sigHex over the
// request. Both v encodings ({0,1} and {27,28}) are accepted.
func RecoverRequestSigner(method, path string, timestamp int64, body []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, ErrBadSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(RequestDigest(method, path, timestamp, body), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
