package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FeeStatusPending  = "pending"
	FeeStatusApproved = "approved"
	FeeStatusRejected = "rejected"
)

const (
	LoanStatusPending   = "pending"
	LoanStatusApproved  = "approved"
	LoanStatusDenied    = "denied"
	LoanStatusRepaid    = "repaid"
	LoanStatusDefaulted = "defaulted"
)

type User struct {
	UserID          int64      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username        string     `gorm:"index" json:"username"`
	TotalRep        int64      `gorm:"default:0;not null;index:idx_users_total_rep,sort:desc" json:"total_rep"`
	Level           int        `gorm:"default:1;not null" json:"level"`
	AccessFeePaid   bool       `gorm:"default:false;not null" json:"access_fee_paid"`
	AccessFeePaidAt *time.Time `json:"access_fee_paid_at"`
	JoinedAt        time.Time  `gorm:"not null" json:"joined_at"`
	LastActiveAt    time.Time  `gorm:"not null" json:"last_active_at"`
}

type Admin struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
}

// AccessFeeSubmission is a user's claim that the access fee was paid.
// Only one pending row per (user, tx reference) may exist.
type AccessFeeSubmission struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      int64     `gorm:"not null;index;uniqueIndex:idx_fee_pending_ref,where:status = 'pending'" json:"user_id"`
	TxReference string    `gorm:"not null;uniqueIndex:idx_fee_pending_ref,where:status = 'pending'" json:"tx_reference"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`
	Status      string    `gorm:"default:pending;not null;index" json:"status"`
}

// ReputationTransaction rows are append-only. A nil FromUserID is a system grant.
type ReputationTransaction struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	FromUserID *int64    `json:"from_user_id"`
	ToUserID   int64     `gorm:"not null;index" json:"to_user_id"`
	ChatID     int64     `json:"chat_id"`
	Amount     int64     `gorm:"default:1;not null" json:"amount"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
	Reason     string    `json:"reason"`
}

// Loan keeps a snapshot of the tier terms it was requested under.
// A user has at most one loan in pending or approved.
type Loan struct {
	LoanID        string          `gorm:"primaryKey" json:"loan_id"`
	UserID        int64           `gorm:"not null;index;uniqueIndex:idx_loans_active_user,where:status = 'pending' OR status = 'approved'" json:"user_id"`
	Username      string          `json:"username"`
	ChatID        int64           `json:"chat_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	InterestRate  decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"interest_rate"`
	TotalDue      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_due"`
	RepaymentDays int             `gorm:"not null" json:"repayment_days"`
	Status        string          `gorm:"default:pending;not null;index" json:"status"`
	RequestedAt   time.Time       `gorm:"not null" json:"requested_at"`
	DueAt         *time.Time      `gorm:"index" json:"due_at"`
	ApprovedAt    *time.Time      `json:"approved_at"`
	RepaidAt      *time.Time      `json:"repaid_at"`
	DefaultedAt   *time.Time      `json:"defaulted_at"`
	AdminID       *int64          `json:"admin_id"`
	Level         string          `json:"level"`
}

// Tier is one row of the loan tier table. It is configuration, not a table.
type Tier struct {
	ID                  string
	MaxAmount           decimal.Decimal
	InterestRate        decimal.Decimal
	RepaymentPeriodDays int
	MinLevel            int
}

// Profile is a user together with the loan currently in flight, if any.
type Profile struct {
	User       *User
	ActiveLoan *Loan
}

func (l *Loan) IsTerminal() bool {
	switch l.Status {
	case LoanStatusDenied, LoanStatusRepaid, LoanStatusDefaulted:
		return true
	}
	return false
}

type DefaultCallback func(*Loan)
