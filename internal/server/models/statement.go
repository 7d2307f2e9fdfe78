package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UploadSessionStatus string

const (
	UploadSessionPending    UploadSessionStatus = "pending"
	UploadSessionProcessing UploadSessionStatus = "processing"
	UploadSessionCompleted  UploadSessionStatus = "completed"
	UploadSessionFailed     UploadSessionStatus = "failed"
	UploadSessionExpired    UploadSessionStatus = "expired"
)

func (s UploadSessionStatus) Valid() bool {
	switch s {
	case UploadSessionPending, UploadSessionProcessing, UploadSessionCompleted,
		UploadSessionFailed, UploadSessionExpired:
		return true
	}
	return false
}

type StatementType string

const (
	StatementCAMS     StatementType = "cams"
	StatementKFintech StatementType = "kfintech"
	StatementZerodha  StatementType = "zerodha"
	StatementPMS      StatementType = "pms"
	StatementAIF      StatementType = "aif"
	StatementManual   StatementType = "manual"
)

func (t StatementType) Valid() bool {
	switch t {
	case StatementCAMS, StatementKFintech, StatementZerodha, StatementPMS, StatementAIF, StatementManual:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionSale       TransactionType = "sale"
	TransactionDividend   TransactionType = "dividend"
	TransactionInterest   TransactionType = "interest"
	TransactionRedemption TransactionType = "redemption"
	TransactionSwitch     TransactionType = "switch"
	TransactionSIP        TransactionType = "sip"
	TransactionSTP        TransactionType = "stp"
	TransactionSWP        TransactionType = "swp"
	TransactionBonus      TransactionType = "bonus"
	TransactionSplit      TransactionType = "split"
	TransactionOther      TransactionType = "other"
)

var transactionTypes = map[TransactionType]struct{}{
	TransactionPurchase: {}, TransactionSale: {}, TransactionDividend: {}, TransactionInterest: {},
	TransactionRedemption: {}, TransactionSwitch: {}, TransactionSIP: {}, TransactionSTP: {},
	TransactionSWP: {}, TransactionBonus: {}, TransactionSplit: {}, TransactionOther: {},
}

func (t TransactionType) Valid() bool {
	_, ok := transactionTypes[t]
	return ok
}

// UploadSession tracks one statement upload through parsing.
type UploadSession struct {
	ID            string
	UserID        string
	Status        UploadSessionStatus
	StatementType *StatementType
	ExpiresAt     *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Statement struct {
	ID                string
	UploadSessionID   string
	UserID            string
	FileName          string
	FileSizeBytes     int64
	StatementType     StatementType
	StatementDate     *time.Time
	InstitutionName   *string
	FolioNumber       *string
	ParsingConfidence decimal.NullDecimal
	ConfirmedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ParsedTransaction struct {
	ID               string
	StatementID      string
	UserID           string
	TransactionType  TransactionType
	TransactionDate  time.Time
	SecurityName     *string
	SecuritySymbol   *string
	Quantity         decimal.NullDecimal
	PricePerUnit     decimal.NullDecimal
	NAV              decimal.NullDecimal
	Amount           decimal.NullDecimal
	Units            decimal.NullDecimal
	BrokerageCharges decimal.NullDecimal
	ConfidenceScore  decimal.NullDecimal
	IsDuplicate      bool
	IsConfirmed      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StatementFile references the stored copy of a statement by local path.
type StatementFile struct {
	ID            string
	StatementID   string
	LocalFilePath string
	FileHash      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
