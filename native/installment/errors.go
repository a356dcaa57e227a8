package installment

import "errors"

var (
	ErrNilState            = errors.New("installment: state not configured")
	ErrUnauthorized        = errors.New("installment: unauthorized")
	ErrContractNotFound    = errors.New("installment: contract not found")
	ErrDuplicateContract   = errors.New("installment: contract is already created")
	ErrBadQuota            = errors.New("installment: total quota must be 100")
	ErrBadUnitsAmount      = errors.New("installment: units amount must be positive and divisible by 100")
	ErrNoSellers           = errors.New("installment: at least one seller is required")
	ErrUnitNotFound        = errors.New("installment: unit does not exist")
	ErrNotUnitOwner        = errors.New("installment: from is not the owner of the unit")
	ErrNoUnitsAvailable    = errors.New("installment: no units left to transfer")
	ErrSelfTransfer        = errors.New("installment: from and to must differ")
	ErrOperationNotAllowed = errors.New("installment: operation is not allowed")
)
