package repository

import (
	"context"
	"errors"
	"time"

	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the ledger store contract used by the service layer. Lookups
// return (nil, nil) when a row does not exist. Methods that change a status
// take the expected current status and report whether the row was changed,
// so callers never apply a transition twice.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, userID int64) (*models.User, error)
	LockUser(ctx context.Context, userID int64) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetOrCreateUser(ctx context.Context, userID int64, username string, now time.Time) (*models.User, error)
	SetUserReputation(ctx context.Context, userID int64, totalRep int64, level int) error
	MarkAccessFeePaid(ctx context.Context, userID int64, at time.Time) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]models.User, error)

	IsAdmin(ctx context.Context, userID int64) (bool, error)
	AddAdmin(ctx context.Context, userID int64) error
	ListAdmins(ctx context.Context) ([]int64, error)

	CreateFeeSubmission(ctx context.Context, sub *models.AccessFeeSubmission) error
	GetFeeSubmission(ctx context.Context, id int64) (*models.AccessFeeSubmission, error)
	FindPendingSubmission(ctx context.Context, userID int64, txReference string) (*models.AccessFeeSubmission, error)
	ListFeeSubmissions(ctx context.Context, status string, userID *int64) ([]models.AccessFeeSubmission, error)
	SetFeeStatus(ctx context.Context, id int64, from, to string) (bool, error)

	CreateReputation(ctx context.Context, rep *models.ReputationTransaction) error
	SumReputation(ctx context.Context, toUserID int64) (int64, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, loanID string) (*models.Loan, error)
	GetActiveLoan(ctx context.Context, userID int64) (*models.Loan, error)
	ListLoansByUser(ctx context.Context, userID int64) ([]models.Loan, error)
	ListLoansByStatus(ctx context.Context, status string) ([]models.Loan, error)
	ListOverdueLoans(ctx context.Context, now time.Time) ([]models.Loan, error)
	UpdateLoanStatus(ctx context.Context, loanID string, from string, updates map[string]interface{}) (bool, error)
}

type Repository struct {
	db      *gorm.DB
	logger  *utils.Logger
	timeout time.Duration
	inTx    bool
}

func NewRepository(db *gorm.DB, logger *utils.Logger, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Repository{db: db, logger: logger, timeout: timeout}
}

var _ Store = (*Repository)(nil)

// session returns a handle bound to ctx. Outside a transaction every call
// gets its own deadline; inside one the transaction deadline applies.
func (r *Repository) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if r.inTx {
		return r.db, func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

// forUpdate adds a row lock where the dialect supports one. sqlite
// serializes writers on its own.
func (r *Repository) forUpdate(db *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
