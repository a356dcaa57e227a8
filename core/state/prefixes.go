package state

var (
	accountPrefix           = []byte("account/")
	allowancePrefix         = []byte("stable/allowance/")
	rewardOwnerMintedKey    = []byte("reward/minted/owner")
	rewardPoolMintedKey     = []byte("reward/minted/pool")
	rewardReservedKey       = []byte("rewardpool/reserved")
	contractPrefix          = []byte("installment/contract/")
	unitPrefix              = []byte("installment/unit/")
	unitBalancePrefix       = []byte("installment/balance/")
	presaleKey              = []byte("presale/state")
	presaleBalancePrefix    = []byte("presale/balance/")
	presaleInvestmentPrefix = []byte("presale/investment/")
)
