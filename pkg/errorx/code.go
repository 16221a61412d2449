package errorx

type Code int

var Unknown = Error{Code: 100000, Message: "Request failed"}

const (
	// Common codes
	BadRequest       Code = 100001
	PermissionDenied Code = 100003
	NotFound         Code = 100004
	AlreadyExists    Code = 100006
	Internal         Code = 100007
	Unavailable      Code = 100008

	// Credit ledger codes
	InsufficientCredits Code = 200001

	// Chain codes
	OperationFailed Code = 300001
	TxNotRetryable  Code = 300002
)
