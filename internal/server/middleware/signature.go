package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/crypto"
)

// MaxSignedBody caps the body read for signature verification.
const MaxSignedBody = 1 << 20

type callerKey struct{}

// Caller returns the address recovered by Signature for this request.
func Caller(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(common.Address)
	return addr, ok
}

// WithCaller attaches a caller address to ctx.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// Signature verifies the request signature headers and stores the recovered
// address as the request caller. Timestamps further than maxSkew from now
// are rejected. The body is buffered and restored for the next handler.
func Signature(maxSkew time.Duration, now func() time.Time, logger *slog.Logger) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig := r.Header.Get(crypto.HeaderSignature)
			tsHeader := r.Header.Get(crypto.HeaderTimestamp)
			if sig == "" || tsHeader == "" {
				writeUnauthorized(w, "missing request signature")
				return
			}

			ts, err := strconv.ParseInt(tsHeader, 10, 64)
			if err != nil {
				writeUnauthorized(w, "invalid signature timestamp")
				return
			}
			skew := now().Sub(time.Unix(ts, 0))
			if skew < 0 {
				skew = -skew
			}
			if skew > maxSkew {
				writeUnauthorized(w, "signature timestamp outside allowed window")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, MaxSignedBody+1))
			if err != nil {
				writeUnauthorized(w, "unreadable request body")
				return
			}
			if len(body) > MaxSignedBody {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				w.Write([]byte(`{"error":"request body too large"}`))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			caller, err := crypto.RecoverRequestSigner(r.Method, r.URL.Path, ts, body, sig)
			if err != nil {
				if !errors.Is(err, crypto.ErrBadSignature) {
					logger.WarnContext(r.Context(), "signature recovery failed",
						slog.String("error", err.Error()),
					)
				}
				writeUnauthorized(w, "invalid request signature")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
