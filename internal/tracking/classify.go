package tracking

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Failure kinds used as error.type values.
const (
	KindTimeout    = "timeout"
	KindCanceled   = "canceled"
	KindDNS        = "dns"
	KindConnection = "connection_error"
	KindClosed     = "closed"
	KindDecode     = "decode"
	KindOther      = "error"
)

// Classify maps an error onto a small, bounded set of values for metric
// attributes and log fields.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &dnsErr):
		return KindDNS
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return KindConnection
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "closed"):
		return KindClosed
	case strings.Contains(msg, "connection"):
		return KindConnection
	case strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "json"), strings.Contains(msg, "decode"):
		return KindDecode
	default:
		return KindOther
	}
}
