package domain

import "time"

// CentralBankAccountID is the system account that mints rewards and receives
// bid charges. Its balance may go negative.
const CentralBankAccountID int64 = 0

type OwnerType string

const (
	OwnerUser       OwnerType = "user"
	OwnerGeneration OwnerType = "generation"
	OwnerSystem     OwnerType = "system"
)

type Account struct {
	ID        int64     `json:"id"`
	OwnerType OwnerType `json:"ownerType"`
	OwnerID   int64     `json:"ownerId"`
}

type TransactionType string

const (
	TxCredit    TransactionType = "credit"
	TxDebit     TransactionType = "debit"
	TxReward    TransactionType = "reward"
	TxPurchase  TransactionType = "purchase"
	TxBidCharge TransactionType = "bid_charge"
	TxRefund    TransactionType = "refund"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxCredit, TxDebit, TxReward, TxPurchase, TxBidCharge, TxRefund:
		return true
	default:
		return false
	}
}

type Transaction struct {
	ID                    int64           `json:"id"`
	Type                  TransactionType `json:"type"`
	FromAccountID         int64           `json:"fromAccountId"`
	ToAccountID           int64           `json:"toAccountId"`
	Amount                int64           `json:"amount"`
	ExternalTransactionID *string         `json:"externalTransactionId,omitempty"`
	Description           string          `json:"description"`
	CreatedAt             time.Time       `json:"createdAt"`
}

type RedeemableCode struct {
	Code             string     `json:"code"`
	BuzzAmount       int64      `json:"buzzAmount"`
	RedeemedByUserID *int64     `json:"redeemedByUserId,omitempty"`
	RedeemedAt       *time.Time `json:"redeemedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (c RedeemableCode) Redeemed() bool {
	return c.RedeemedByUserID != nil
}

type Auction struct {
	ID         int64     `json:"id"`
	Slug       string    `json:"slug"`
	Ecosystem  string    `json:"ecosystem"`
	StartAt    time.Time `json:"startAt"`
	EndAt      time.Time `json:"endAt"`
	MinimumBid int64     `json:"minimumBid"`
}

// Open reports whether bids are accepted at now.
func (a Auction) Open(now time.Time) bool {
	return !now.Before(a.StartAt) && now.Before(a.EndAt)
}

// AuctionDetail is an auction with its pending bids, highest first.
type AuctionDetail struct {
	Auction
	Bids          []Bid `json:"bids"`
	BidCount      int   `json:"bidCount"`
	PendingAmount int64 `json:"pendingAmount"`
}

type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAllocated BidStatus = "allocated"
	BidRefunded  BidStatus = "refunded"
)

type Bid struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"userId"`
	AuctionID           int64     `json:"auctionId"`
	Amount              int64     `json:"amount"`
	Status              BidStatus `json:"status"`
	TransactionID       int64     `json:"transactionId"`
	RefundTransactionID *int64    `json:"refundTransactionId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

type RecurringBid struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	AuctionID int64     `json:"auctionId"`
	Amount    int64     `json:"amount"`
	Paused    bool      `json:"paused"`
	CreatedAt time.Time `json:"createdAt"`
}

// PriorityVolume is queue depth per priority tier for one ecosystem.
type PriorityVolume struct {
	Key               string           `json:"key"`
	PrioritySummaries map[string]int64 `json:"prioritySummaries"`
}
