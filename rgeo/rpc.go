package rgeo

import (
	"context"
	"errors"
	"net/rpc"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/params"
)

type CountryRequest struct {
	Lat float64
	Lon float64
}

// CountryResponse carries the error as text; error values do not survive gob.
type CountryResponse struct {
	Country string
	Error   string
}

// RPCClient geocodes through a running rgeod.
type RPCClient struct {
	config *params.RgeoDaemonConfig
	client *rpc.Client
}

func NewRPCClient(config *params.RgeoDaemonConfig) (*RPCClient, error) {
	if config == nil {
		config = params.DefaultRgeoDaemonConfig()
	}
	client, err := common.DialRPC(config.Network, config.Address)
	if err != nil {
		return nil, err
	}
	return &RPCClient{config: config, client: client}, nil
}

func (c *RPCClient) Country(ctx context.Context, lat, lon float64) (string, error) {
	res := &CountryResponse{}
	call := c.client.Go(c.config.ServiceName+".Country", &CountryRequest{Lat: lat, Lon: lon}, res, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-call.Done:
	}
	if call.Error != nil {
		return "", call.Error
	}
	if res.Error != "" {
		return "", errors.Join(ErrNoCountry, errors.New(res.Error))
	}
	return res.Country, nil
}

func (c *RPCClient) Ping() error {
	return c.client.Call(c.config.ServiceName+".Ping", 0, new(int))
}

func (c *RPCClient) Close() error {
	return c.client.Close()
}
