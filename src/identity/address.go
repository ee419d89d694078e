package identity

import (
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const UnknownAddress = "unknown"

// Figures out the network address of the client that made a request.
// Headers set by the platform win over ones any proxy could set:
//
//	CF-Connecting-IP, X-Real-IP, first hop of X-Forwarded-For, RemoteAddr
//
// If none of them hold anything usable the result is UnknownAddress, which
// still works as a (shared) quota key.
func ClientIP(header http.Header, remoteAddr string) string {
	if ip, ok := parseAddress(header.Get("CF-Connecting-IP")); ok {
		return ip
	}
	if ip, ok := parseAddress(header.Get("X-Real-IP")); ok {
		return ip
	}
	if forwarded := header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip, ok := parseAddress(first); ok {
			return ip
		}
	}
	if remoteAddr != "" {
		host, _, err := net.SplitHostPort(remoteAddr)
		if err != nil {
			host = remoteAddr
		}
		if ip, ok := parseAddress(host); ok {
			return ip
		}
	}
	return UnknownAddress
}

func parseAddress(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

// A stable, non-reversible stand-in for a network address, for logs.
func HashAddress(addr string) string {
	sum := blake2b.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:8])
}
