package common

import (
	"errors"
	"log/slog"
	"net/rpc"
)

var ErrUnsupportedNetwork = errors.New("unsupported network")

// DialRPC dials an RPC server. Unix sockets speak raw RPC,
// TCP networks speak RPC over HTTP.
func DialRPC(network, address string) (*rpc.Client, error) {
	switch network {
	case "unix", "unixpacket":
		slog.Debug("Dialing RPC", "network", network, "address", address)
		return rpc.Dial(network, address)
	case "tcp", "tcp4", "tcp6":
		slog.Debug("Dialing HTTP", "network", network, "address", address)
		return rpc.DialHTTP(network, address)
	}
	return nil, ErrUnsupportedNetwork
}
