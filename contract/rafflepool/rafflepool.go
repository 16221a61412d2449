package rafflepool

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Names of the contract events consumed by the event processor.
const (
	EventRaffleCreated          = "RaffleCreated"
	EventParticipationPurchased = "ParticipationPurchased"
	EventRaffleFull             = "RaffleFull"
	EventRandomnessRequested    = "RandomnessRequested"
	EventRandomnessFulfilled    = "RandomnessFulfilled"
	EventRaffleCompleted        = "RaffleCompleted"
	EventRaffleCancelled        = "RaffleCancelled"
	EventRefundIssued           = "RefundIssued"
)

const rafflePoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "creator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "totalBoxes", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "boxPrice", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "totalWinners", "type": "uint256"}
    ],
    "name": "RaffleCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "participant", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "participationId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256[]", "name": "boxesPurchased", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256", "name": "totalCost", "type": "uint256"}
    ],
    "name": "ParticipationPurchased",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"}
    ],
    "name": "RaffleFull",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "requestId", "type": "uint256"}
    ],
    "name": "RandomnessRequested",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "randomSeed", "type": "uint256"}
    ],
    "name": "RandomnessFulfilled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"indexed": false, "internalType": "address[]", "name": "winners", "type": "address[]"},
      {"indexed": false, "internalType": "uint256", "name": "randomSeed", "type": "uint256"}
    ],
    "name": "RaffleCompleted",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "reason", "type": "string"}
    ],
    "name": "RaffleCancelled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "participant", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "RefundIssued",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "seller", "type": "address"},
      {"internalType": "address", "name": "itemToken", "type": "address"},
      {"internalType": "uint256", "name": "itemTokenId", "type": "uint256"},
      {"internalType": "uint256", "name": "totalBoxes", "type": "uint256"},
      {"internalType": "uint256", "name": "boxPrice", "type": "uint256"},
      {"internalType": "uint256", "name": "totalWinners", "type": "uint256"},
      {"internalType": "uint256", "name": "maxBoxesPerUser", "type": "uint256"},
      {"internalType": "uint256", "name": "gridRows", "type": "uint256"},
      {"internalType": "uint256", "name": "gridCols", "type": "uint256"},
      {"internalType": "uint256", "name": "startTime", "type": "uint256"},
      {"internalType": "uint256", "name": "endTime", "type": "uint256"},
      {"internalType": "address", "name": "paymentToken", "type": "address"},
      {"internalType": "bytes32", "name": "metadataHash", "type": "bytes32"},
      {"internalType": "bool", "name": "autoDrawOnFull", "type": "bool"}
    ],
    "name": "createRaffle",
    "outputs": [{"internalType": "uint256", "name": "raffleId", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"internalType": "uint256[]", "name": "boxes", "type": "uint256[]"},
      {"internalType": "bytes", "name": "proof", "type": "bytes"}
    ],
    "name": "purchaseParticipation",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "raffleId", "type": "uint256"}],
    "name": "requestRandomWinner",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "raffleId", "type": "uint256"},
      {"internalType": "string", "name": "reason", "type": "string"}
    ],
    "name": "cancelRaffle",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "raffleId", "type": "uint256"}],
    "name": "claimRefund",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "pause",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "unpause",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "role", "type": "bytes32"},
      {"internalType": "address", "name": "account", "type": "address"}
    ],
    "name": "grantRole",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "role", "type": "bytes32"},
      {"internalType": "address", "name": "account", "type": "address"}
    ],
    "name": "revokeRole",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	rafflePoolABI     abi.ABI
	rafflePoolABIOnce sync.Once
	rafflePoolABIErr  error
)

// PoolABI returns the parsed raffle pool ABI.
func PoolABI() (abi.ABI, error) {
	rafflePoolABIOnce.Do(func() {
		rafflePoolABI, rafflePoolABIErr = abi.JSON(strings.NewReader(rafflePoolABIJSON))
	})
	return rafflePoolABI, rafflePoolABIErr
}

// RafflePool wraps the deployed raffle contract for calldata packing and log
// parsing. It never talks to the chain itself; the transaction manager signs
// and sends, the event processor fetches logs.
type RafflePool struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

func NewRafflePool(address common.Address) (*RafflePool, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}

	return &RafflePool{
		address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, nil, nil, nil),
	}, nil
}

func (p *RafflePool) Address() common.Address {
	return p.address
}

// CreateRaffleParams carries the canonical 14-argument createRaffle call.
type CreateRaffleParams struct {
	Seller          common.Address
	ItemToken       common.Address
	ItemTokenID     *big.Int
	TotalBoxes      *big.Int
	BoxPrice        *big.Int
	TotalWinners    *big.Int
	MaxBoxesPerUser *big.Int
	GridRows        *big.Int
	GridCols        *big.Int
	StartTime       *big.Int
	EndTime         *big.Int
	PaymentToken    common.Address
	MetadataHash    [32]byte
	AutoDrawOnFull  bool
}

func (p *RafflePool) PackCreateRaffle(params CreateRaffleParams) ([]byte, error) {
	return p.abi.Pack("createRaffle",
		params.Seller,
		params.ItemToken,
		params.ItemTokenID,
		params.TotalBoxes,
		params.BoxPrice,
		params.TotalWinners,
		params.MaxBoxesPerUser,
		params.GridRows,
		params.GridCols,
		params.StartTime,
		params.EndTime,
		params.PaymentToken,
		params.MetadataHash,
		params.AutoDrawOnFull,
	)
}

func (p *RafflePool) PackPurchaseParticipation(raffleID *big.Int, boxes []*big.Int, proof []byte) ([]byte, error) {
	return p.abi.Pack("purchaseParticipation", raffleID, boxes, proof)
}

func (p *RafflePool) PackRequestRandomWinner(raffleID *big.Int) ([]byte, error) {
	return p.abi.Pack("requestRandomWinner", raffleID)
}

func (p *RafflePool) PackCancelRaffle(raffleID *big.Int, reason string) ([]byte, error) {
	return p.abi.Pack("cancelRaffle", raffleID, reason)
}

func (p *RafflePool) PackClaimRefund(raffleID *big.Int) ([]byte, error) {
	return p.abi.Pack("claimRefund", raffleID)
}

func (p *RafflePool) PackPause() ([]byte, error) {
	return p.abi.Pack("pause")
}

func (p *RafflePool) PackUnpause() ([]byte, error) {
	return p.abi.Pack("unpause")
}

func (p *RafflePool) PackGrantRole(role [32]byte, account common.Address) ([]byte, error) {
	return p.abi.Pack("grantRole", role, account)
}

func (p *RafflePool) PackRevokeRole(role [32]byte, account common.Address) ([]byte, error) {
	return p.abi.Pack("revokeRole", role, account)
}

type RaffleCreated struct {
	RaffleId     *big.Int
	Creator      common.Address
	TotalBoxes   *big.Int
	BoxPrice     *big.Int
	TotalWinners *big.Int
	Raw          ethtypes.Log
}

type ParticipationPurchased struct {
	RaffleId        *big.Int
	Participant     common.Address
	ParticipationId *big.Int
	BoxesPurchased  []*big.Int
	TotalCost       *big.Int
	Raw             ethtypes.Log
}

type RaffleFull struct {
	RaffleId *big.Int
	Raw      ethtypes.Log
}

type RandomnessRequested struct {
	RaffleId  *big.Int
	RequestId *big.Int
	Raw       ethtypes.Log
}

type RandomnessFulfilled struct {
	RaffleId   *big.Int
	RandomSeed *big.Int
	Raw        ethtypes.Log
}

type RaffleCompleted struct {
	RaffleId   *big.Int
	Winners    []common.Address
	RandomSeed *big.Int
	Raw        ethtypes.Log
}

type RaffleCancelled struct {
	RaffleId *big.Int
	Reason   string
	Raw      ethtypes.Log
}

type RefundIssued struct {
	RaffleId    *big.Int
	Participant common.Address
	Amount      *big.Int
	Raw         ethtypes.Log
}

// EventName resolves the first topic of a log to the event it belongs to.
func (p *RafflePool) EventName(topic0 common.Hash) (string, bool) {
	ev, err := p.abi.EventByID(topic0)
	if err != nil {
		return "", false
	}

	return ev.Name, true
}

// ParseLog decodes a raw log emitted by the contract into one of the event
// structs above. Logs of unknown events return an error.
func (p *RafflePool) ParseLog(log ethtypes.Log) (any, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log without topics")
	}

	name, ok := p.EventName(log.Topics[0])
	if !ok {
		return nil, fmt.Errorf("unknown event topic %s", log.Topics[0].Hex())
	}

	switch name {
	case EventRaffleCreated:
		ev := new(RaffleCreated)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil

	case EventParticipationPurchased:
		ev := new(ParticipationPurchased)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil

	case EventRaffleFull:
		ev := new(RaffleFull)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil

	case EventRandomnessRequested:
		ev := new(RandomnessRequested)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil

	case EventRandomnessFulfilled:
		ev := new(RandomnessFulfilled)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil

	case EventRaffleCompleted:
		ev := new(RaffleCompleted)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil

	case EventRaffleCancelled:
		ev := new(RaffleCancelled)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil

	case EventRefundIssued:
		ev := new(RefundIssued)
		if err := p.bound.UnpackLog(ev, name, log); err != nil {
			return nil, err
		}
		ev.Raw = log
		return ev, nil
	}

	return nil, fmt.Errorf("unhandled event %s", name)
}
