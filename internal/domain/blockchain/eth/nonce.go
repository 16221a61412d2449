package eth

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultNonceStaleAfter = 60 * time.Second

// NonceManager hands out nonces for one signer. The counter is seeded from
// the chain's pending nonce and refreshed when it has not been synced for
// staleAfter; assigned nonces are held until released so that two concurrent
// submissions never share one.
type NonceManager struct {
	client     EthClient
	address    common.Address
	staleAfter time.Duration

	mutex       sync.Mutex
	onchain     uint64
	refreshedAt time.Time
	pending     map[uint64]bool
}

func NewNonceManager(client EthClient, address common.Address, staleAfter time.Duration) *NonceManager {
	if staleAfter <= 0 {
		staleAfter = DefaultNonceStaleAfter
	}

	return &NonceManager{
		client:     client,
		address:    address,
		staleAfter: staleAfter,
		pending:    make(map[uint64]bool),
	}
}

// Next assigns the smallest unused nonce not below the chain's pending nonce.
func (m *NonceManager) Next(ctx context.Context) (uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.refresh(ctx); err != nil {
		return 0, err
	}

	nonce := m.onchain
	for m.pending[nonce] {
		nonce++
	}

	m.pending[nonce] = true
	return nonce, nil
}

// Hold re-registers a nonce that is already on the wire, used when pending
// submissions are recovered from the database after a restart.
func (m *NonceManager) Hold(nonce uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.pending[nonce] = true
}

// Release frees a nonce after its transaction reached a terminal state. A
// replaced transaction must not release: the replacement inherits the nonce
// and releases it when it terminates.
func (m *NonceManager) Release(nonce uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.pending, nonce)
}

func (m *NonceManager) refresh(ctx context.Context) error {
	if time.Since(m.refreshedAt) < m.staleAfter {
		return nil
	}

	onchain, err := m.client.PendingNonceAt(ctx, m.address)
	if err != nil {
		return err
	}

	m.onchain = onchain
	m.refreshedAt = time.Now()
	return nil
}
