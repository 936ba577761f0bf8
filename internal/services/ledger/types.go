package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/services/bonus"
)

type TransactionInput struct {
	Type          domain.TransactionType `json:"type"`
	FromAccountID int64                  `json:"fromAccountId"`
	ToAccountID   int64                  `json:"toAccountId"`
	Amount        int64                  `json:"amount"`
	// Empty means the transaction is not idempotent.
	ExternalTransactionID string `json:"externalTransactionId,omitempty"`
	Description           string `json:"description,omitempty"`
}

// Result is the stored transaction. Replayed is set when the external id was
// already recorded and nothing new was written.
type Result struct {
	Transaction domain.Transaction `json:"transaction"`
	Replayed    bool               `json:"replayed"`
}

type BatchItem struct {
	Index       int                 `json:"index"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Replayed    bool                `json:"replayed,omitempty"`
	Error       string              `json:"error,omitempty"`
}

type BatchResult struct {
	Succeeded int         `json:"succeeded"`
	Replayed  int         `json:"replayed"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

type PurchaseInput struct {
	UserID              int64           `json:"userId"`
	BuzzAmount          int64           `json:"buzzAmount"`
	PurchasesMultiplier decimal.Decimal `json:"purchasesMultiplier"`
	ExternalID          string          `json:"externalId"`
}

type PurchaseResult struct {
	Bonus        bonus.Result         `json:"bonus"`
	Transactions []domain.Transaction `json:"transactions"`
	Replayed     bool                 `json:"replayed"`
}
