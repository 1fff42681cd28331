package client

import (
	"context"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
)

// ReverseResolver reports the names an address resolves back to.
// *net.Resolver satisfies it.
type ReverseResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

var _ ReverseResolver = (*net.Resolver)(nil)

var (
	ipMetrics atomic.Pointer[ipClientMetrics]
)

func init() {
	ipMetrics.Store(newIPClientMetrics())
}

// QueryIP performs one request/response exchange with the server at
// remoteAddr and evaluates the response. A response that fails the
// acceptance gate yields a Result with Valid unset and a nil error.
func QueryIP(ctx context.Context, log *zap.Logger, ntpc *IPClient,
	localAddr, remoteAddr *net.UDPAddr) (*Result, error) {
	mtrcs := ipMetrics.Load()
	return ntpc.queryIP(ctx, log, mtrcs, localAddr, remoteAddr)
}
