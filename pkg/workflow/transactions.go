package workflow

import (
	"context"
	"fmt"
	"strings"

	"approval-ledger/pkg/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const transactionWorkflow = "transaction"

// Fixed descriptions and payment methods of the creation variants.
const (
	DepositDescription        = "Payment For Deposite"
	WalletPaymentMethod       = "Withdraw From Wallet"
	WithdrawalPaymentMethod   = "Bank Account"
	walletDescriptionFormat   = "Payment For Deposit - %s (%s)"
	withdrawDescriptionFormat = "Request for Withdrawal - %s (%s)"
)

// TransactionService runs the transaction approval workflow.
type TransactionService struct {
	store store.RecordStore
	opts  Options
}

// NewTransactionService creates a service over s.
func NewTransactionService(s store.RecordStore, opts ...Option) *TransactionService {
	return &TransactionService{store: s, opts: buildOptions("transactions", opts)}
}

// NewTransaction is the input of Create.
type NewTransaction struct {
	Amount        decimal.Decimal
	CreatedAt     string
	CreatedBy     string
	PaymentMethod string
	Description   string
	ImagePath     string
}

// Create inserts a Pending transaction.
func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (*Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}
	createdAt := strings.TrimSpace(in.CreatedAt)
	if createdAt == "" {
		return nil, required("createdAt")
	}
	owner, ok := NormalizeID(in.CreatedBy)
	if !ok {
		return nil, required("createdBy")
	}

	t := Transaction{
		Description:   in.Description,
		PaymentMethod: in.PaymentMethod,
		Amount:        in.Amount,
		CreatedBy:     owner,
		CreatedAt:     createdAt,
		AcceptedAt:    AcceptedAtNotUpdated,
		TransactionID: TransactionIDNotUpdated,
		Status:        TransactionPending,
		ImagePath:     in.ImagePath,
	}

	id, err := s.store.Insert(ctx, s.opts.Collections.Transactions, "", t.document())
	if err != nil {
		s.opts.log(ctx).Error("failed to create transaction", zap.String("created_by", owner), zap.Error(err))
		return nil, storeError(err, "transaction", "")
	}
	t.ID = id

	s.opts.Metrics.RecordTransition(transactionWorkflow, "", string(TransactionPending))
	s.opts.log(ctx).Info("transaction created",
		zap.String("id", id),
		zap.String("created_by", owner),
		zap.String("amount", t.Amount.String()),
		zap.String("payment_method", t.PaymentMethod),
	)

	return &t, nil
}

// DepositRequest is a deposit with an uploaded payment proof.
type DepositRequest struct {
	Amount        decimal.Decimal
	CreatedAt     string
	CreatedBy     string
	PaymentMethod string
	ImagePath     string
}

// CreateDeposit creates a deposit transaction.
func (s *TransactionService) CreateDeposit(ctx context.Context, in DepositRequest) (*Transaction, error) {
	return s.Create(ctx, NewTransaction{
		Amount:        in.Amount,
		CreatedAt:     in.CreatedAt,
		CreatedBy:     in.CreatedBy,
		PaymentMethod: in.PaymentMethod,
		Description:   DepositDescription,
		ImagePath:     in.ImagePath,
	})
}

// WalletDepositRequest moves funds from the wallet to a provisioned website login.
type WalletDepositRequest struct {
	Amount       decimal.Decimal
	CreatedAt    string
	CreatedBy    string
	WebsiteName  string
	Username     string
	CredentialID string
}

// CreateWalletDeposit creates a deposit paid from the wallet balance.
func (s *TransactionService) CreateWalletDeposit(ctx context.Context, in WalletDepositRequest) (*Transaction, error) {
	if strings.TrimSpace(in.WebsiteName) == "" {
		return nil, required("websiteName")
	}
	if _, ok := NormalizeID(in.CredentialID); !ok {
		return nil, required("id")
	}

	return s.Create(ctx, NewTransaction{
		Amount:        in.Amount,
		CreatedAt:     in.CreatedAt,
		CreatedBy:     in.CreatedBy,
		PaymentMethod: WalletPaymentMethod,
		Description:   fmt.Sprintf(walletDescriptionFormat, in.WebsiteName, in.Username),
	})
}

// WithdrawalRequest withdraws funds from a website login to the bank account.
type WithdrawalRequest struct {
	Amount       decimal.Decimal
	CreatedAt    string
	CreatedBy    string
	WebsiteName  string
	WebsiteURL   string
	Username     string
	CredentialID string
}

// CreateWithdrawal creates a withdrawal transaction.
func (s *TransactionService) CreateWithdrawal(ctx context.Context, in WithdrawalRequest) (*Transaction, error) {
	for _, f := range []struct{ name, value string }{
		{"websiteName", in.WebsiteName},
		{"websiteUrl", in.WebsiteURL},
		{"username", in.Username},
		{"id", in.CredentialID},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, required(f.name)
		}
	}

	return s.Create(ctx, NewTransaction{
		Amount:        in.Amount,
		CreatedAt:     in.CreatedAt,
		CreatedBy:     in.CreatedBy,
		PaymentMethod: WithdrawalPaymentMethod,
		Description:   fmt.Sprintf(withdrawDescriptionFormat, in.WebsiteName, in.Username),
	})
}

// Get returns one transaction.
func (s *TransactionService) Get(ctx context.Context, id string) (*Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, required("id")
	}
	doc, err := s.store.Get(ctx, s.opts.Collections.Transactions, id)
	if err != nil {
		return nil, storeError(err, "transaction", id)
	}
	t := transactionFromRecord(id, doc)
	return &t, nil
}

// Decide sets the terminal status of a transaction. outcome must be
// Completed or Failed.
func (s *TransactionService) Decide(ctx context.Context, id string, outcome TransactionStatus) (*Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, required("id")
	}
	if !outcome.Terminal() {
		return nil, invalid("status", fmt.Sprintf("must be %s or %s", TransactionCompleted, TransactionFailed))
	}
	return s.apply(ctx, id, store.Document{"status": string(outcome)}, outcome)
}

// Accept marks a transaction Completed.
func (s *TransactionService) Accept(ctx context.Context, id string) (*Transaction, error) {
	return s.Decide(ctx, id, TransactionCompleted)
}

// Reject marks a transaction Failed.
func (s *TransactionService) Reject(ctx context.Context, id string) (*Transaction, error) {
	return s.Decide(ctx, id, TransactionFailed)
}

// AdminPatch is the set of fields an admin may correct on a transaction.
// Empty fields are left unchanged.
type AdminPatch struct {
	TransactionID string
	AcceptedAt    string
	Status        string
}

// Update applies an admin patch. At least one field must be set and a
// status, if given, must be terminal.
func (s *TransactionService) Update(ctx context.Context, id string, patch AdminPatch) (*Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, required("id")
	}

	fields := store.Document{}
	if v := strings.TrimSpace(patch.TransactionID); v != "" {
		fields["transactionId"] = v
	}
	if v := strings.TrimSpace(patch.AcceptedAt); v != "" {
		fields["acceptedAt"] = v
	}

	var status TransactionStatus
	if patch.Status != "" {
		parsed, err := ParseTransactionStatus(patch.Status)
		if err != nil || !parsed.Terminal() {
			return nil, invalid("status", fmt.Sprintf("must be %s or %s", TransactionCompleted, TransactionFailed))
		}
		status = parsed
		fields["status"] = string(status)
	}

	if len(fields) == 0 {
		return nil, invalid("", "one of transactionId, acceptedAt or status is required")
	}

	return s.apply(ctx, id, fields, status)
}

// apply merges fields into the transaction. A non-empty status is checked
// against the current one first.
func (s *TransactionService) apply(ctx context.Context, id string, fields store.Document, status TransactionStatus) (*Transaction, error) {
	collection := s.opts.Collections.Transactions
	log := s.opts.log(ctx).With(zap.String("id", id))

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		if !store.IsNotFound(err) {
			log.Error("failed to load transaction", zap.Error(err))
		}
		return nil, storeError(err, "transaction", id)
	}

	current := transactionFromRecord(id, doc).Status
	if status != "" && current.Terminal() {
		if s.opts.StrictTransitions {
			return nil, fmt.Errorf("%w: transaction %s is already %s", ErrInvalidTransition, id, current)
		}
		log.Warn("re-deciding transaction",
			zap.String("from", string(current)),
			zap.String("to", string(status)),
		)
	}

	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		if !store.IsNotFound(err) {
			log.Error("failed to update transaction", zap.Error(err))
		}
		return nil, storeError(err, "transaction", id)
	}

	if status != "" {
		s.opts.Metrics.RecordTransition(transactionWorkflow, string(current), string(status))
		log.Info("transaction decided",
			zap.String("from", string(current)),
			zap.String("to", string(status)),
		)
	}

	t := transactionFromRecord(id, doc.Merge(fields))
	return &t, nil
}

// List returns the transactions of one user, or all transactions when
// createdBy is empty. No match is an empty slice, not an error.
func (s *TransactionService) List(ctx context.Context, createdBy string) ([]Transaction, error) {
	var filters []store.Filter
	if owner, ok := NormalizeID(createdBy); ok {
		filters = append(filters, store.Eq("createdBy", owner))
	}

	recs, err := s.store.Query(ctx, s.opts.Collections.Transactions, filters...)
	if err != nil {
		s.opts.log(ctx).Error("failed to list transactions", zap.String("created_by", createdBy), zap.Error(err))
		return nil, storeError(err, "transactions", "")
	}

	out := make([]Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, transactionFromRecord(rec.ID, rec.Data))
	}
	return out, nil
}
