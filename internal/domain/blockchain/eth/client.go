package eth

import (
	"context"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rafflehub/backend/pkg/xcontext"
)

const RpcTimeOut = time.Second * 5

// A wrapper around eth.client so that we can mock in manager and processor
// tests.
type EthClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	BalanceAt(ctx context.Context, from common.Address, block *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error)
}

// Default implementation of ETH client. It dials the configured http endpoint
// for calls and the websocket endpoint for subscriptions, lazily and at most
// once each.
type defaultEthClient struct {
	rpcEndpoint string
	wsEndpoint  string

	mutex    sync.Mutex
	client   *ethclient.Client
	wsClient *ethclient.Client
}

func NewEthClient(ctx context.Context) EthClient {
	cfg := xcontext.Configs(ctx).Chain
	return &defaultEthClient{
		rpcEndpoint: cfg.RPCEndpoint,
		wsEndpoint:  cfg.WsEndpoint,
	}
}

func (c *defaultEthClient) httpClient(ctx context.Context) (*ethclient.Client, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.rpcEndpoint)
	if err != nil {
		return nil, err
	}

	c.client = client
	return client, nil
}

func (c *defaultEthClient) websocketClient(ctx context.Context) (*ethclient.Client, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.wsClient != nil {
		return c.wsClient, nil
	}

	client, err := ethclient.DialContext(ctx, c.wsEndpoint)
	if err != nil {
		return nil, err
	}

	c.wsClient = client
	return client, nil
}

func (c *defaultEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.BlockNumber(ctx)
}

func (c *defaultEthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.TransactionReceipt(ctx, txHash)
}

func (c *defaultEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.SuggestGasPrice(ctx)
}

func (c *defaultEthClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.SuggestGasTipCap(ctx)
}

func (c *defaultEthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.PendingNonceAt(ctx, account)
}

func (c *defaultEthClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	client, err := c.httpClient(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.SendTransaction(ctx, tx)
}

func (c *defaultEthClient) BalanceAt(ctx context.Context, from common.Address, block *big.Int) (*big.Int, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.BalanceAt(ctx, from, block)
}

func (c *defaultEthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.EstimateGas(ctx, msg)
}

func (c *defaultEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, RpcTimeOut)
	defer cancel()
	return client.FilterLogs(ctx, q)
}

// SubscribeNewHead runs on the websocket endpoint without the short call
// timeout; the subscription lives until the caller unsubscribes or the stream
// breaks.
func (c *defaultEthClient) SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error) {
	client, err := c.websocketClient(ctx)
	if err != nil {
		return nil, err
	}

	return client.SubscribeNewHead(ctx, ch)
}
