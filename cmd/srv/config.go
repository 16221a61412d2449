package main

import (
	"os"
	"strconv"
	"time"

	"github.com/rafflehub/backend/config"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return fallback
	}

	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}

	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}

	return value
}

func (s *srv) loadConfig() {
	s.configs = config.Configs{
		Env: getEnv("ENV", "local"),
		Database: config.DatabaseConfigs{
			Host:     getEnv("MYSQL_HOST", "localhost"),
			Port:     getEnv("MYSQL_PORT", "3306"),
			User:     getEnv("MYSQL_USER", "rafflehub"),
			Password: getEnv("MYSQL_PASSWORD", "rafflehub"),
			Database: getEnv("MYSQL_DATABASE", "rafflehub"),
			LogLevel: getEnv("DATABASE_LOG_LEVEL", "error"),
		},
		ApiServer: config.ServerConfigs{
			Host: getEnv("HOST", "localhost"),
			Port: getEnv("PORT", "8080"),
		},
		Redis: config.RedisConfigs{
			Addr: getEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Kafka: config.KafkaConfigs{
			Addr:         getEnv("KAFKA_ADDRESS", "localhost:9092"),
			DepositTopic: getEnv("KAFKA_DEPOSIT_TOPIC", "credit-deposits"),
		},
		Chain: config.ChainConfigs{
			Name:              getEnv("CHAIN_NAME", "avaxc-testnet"),
			ChainID:           getEnvInt("CHAIN_ID", 43113),
			RPCEndpoint:       getEnv("CHAIN_RPC_ENDPOINT", "https://api.avax-test.network/ext/bc/C/rpc"),
			WsEndpoint:        getEnv("CHAIN_WS_ENDPOINT", "wss://api.avax-test.network/ext/bc/C/ws"),
			ContractAddress:   getEnv("CHAIN_CONTRACT_ADDRESS", ""),
			SignerKey:         getEnv("CHAIN_SIGNER_KEY", ""),
			UseEip1559:        getEnvBool("CHAIN_USE_EIP1559", true),
			BlockTime:         getEnvDuration("CHAIN_BLOCK_TIME", 2*time.Second),
			ConfirmationDepth: uint64(getEnvInt("CHAIN_CONFIRMATION_DEPTH", 12)),
			BackfillChunkSize: uint64(getEnvInt("CHAIN_BACKFILL_CHUNK_SIZE", 1000)),
			SubmitRetryCount:  int(getEnvInt("CHAIN_SUBMIT_RETRY_COUNT", 3)),
			MonitorTimeout:    getEnvDuration("CHAIN_MONITOR_TIMEOUT", 0),
			NonceStaleAfter:   getEnvDuration("CHAIN_NONCE_STALE_AFTER", time.Minute),
			RPCName:           getEnv("CHAIN_RPC_NAME", "raffle"),
			EventTopic:        getEnv("CHAIN_EVENT_TOPIC", "raffle-events"),
		},
		Credit: config.CreditConfigs{
			RefundExpiry:  getEnvDuration("CREDIT_REFUND_EXPIRY", 0),
			BonusExpiry:   getEnvDuration("CREDIT_BONUS_EXPIRY", 0),
			DepositExpiry: getEnvDuration("CREDIT_DEPOSIT_EXPIRY", 0),
		},
	}
}
