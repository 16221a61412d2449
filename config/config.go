package config

import (
	"fmt"
	"time"
)

type Configs struct {
	Env string

	Database  DatabaseConfigs
	ApiServer ServerConfigs
	Redis     RedisConfigs
	Kafka     KafkaConfigs
	Chain     ChainConfigs
	Credit    CreditConfigs
}

type DatabaseConfigs struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	LogLevel string
}

func (d *DatabaseConfigs) ConnectionString() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

type ServerConfigs struct {
	Host string
	Port string
}

func (c ServerConfigs) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type RedisConfigs struct {
	Addr string
}

type KafkaConfigs struct {
	Addr string

	// DepositTopic carries finalized deposits from the payments service; the
	// credit ledger consumes it and issues the matching lots.
	DepositTopic string
}

// ChainConfigs describes the network the coordination core submits to and
// indexes from.
type ChainConfigs struct {
	Name            string
	ChainID         int64
	RPCEndpoint     string
	WsEndpoint      string
	ContractAddress string

	// SignerKey is the backend signer private key, hex encoded. It is stored
	// encrypted at rest and decrypted by the deployment before it reaches the
	// process environment.
	SignerKey string

	UseEip1559        bool
	BlockTime         time.Duration
	ConfirmationDepth uint64
	BackfillChunkSize uint64
	SubmitRetryCount  int
	MonitorTimeout    time.Duration
	NonceStaleAfter   time.Duration

	// RPCName is the namespace the coordinator is registered under on the
	// internal rpc server.
	RPCName string

	EventTopic string
}

// MonitorTimeoutOrDefault falls back to the network's expected inclusion time
// times 200 when no explicit timeout is configured.
func (c ChainConfigs) MonitorTimeoutOrDefault() time.Duration {
	if c.MonitorTimeout > 0 {
		return c.MonitorTimeout
	}

	return c.BlockTime * 200
}

// CreditConfigs holds default expiries of issued credit lots per source.
type CreditConfigs struct {
	RefundExpiry  time.Duration
	BonusExpiry   time.Duration
	DepositExpiry time.Duration
}

func (c CreditConfigs) RefundExpiryOrDefault() time.Duration {
	if c.RefundExpiry > 0 {
		return c.RefundExpiry
	}

	return 90 * 24 * time.Hour
}
