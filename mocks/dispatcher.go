package mocks

import (
	"context"

	"github.com/rafflehub/backend/internal/domain/blockchain/types"
	"github.com/stretchr/testify/mock"
)

type Dispatcher struct {
	mock.Mock
}

func (d *Dispatcher) Dispatch(arg1 context.Context, arg2 *types.DispatchedTxRequest) *types.DispatchedTxResult {
	args := d.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*types.DispatchedTxResult)
}
