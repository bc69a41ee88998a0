package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"approval-ledger/pkg/store"

	"go.uber.org/zap"
)

const credentialWorkflow = "credential"

// CredentialService runs the credential-request workflow.
type CredentialService struct {
	store store.RecordStore
	opts  Options
}

// NewCredentialService creates a service over s.
func NewCredentialService(s store.RecordStore, opts ...Option) *CredentialService {
	return &CredentialService{store: s, opts: buildOptions("credentials", opts)}
}

// NewCredentialRequest is the input of Create. Every field is required.
type NewCredentialRequest struct {
	WebsiteName string
	WebsiteURL  string
	Username    string
	Password    string
	ImgURL      string
	CreatedBy   string
}

// Create inserts a Requested credential request stamped with the server time.
func (s *CredentialService) Create(ctx context.Context, in NewCredentialRequest) (*CredentialRequest, error) {
	for _, f := range []struct{ name, value string }{
		{"websiteName", in.WebsiteName},
		{"websiteUrl", in.WebsiteURL},
		{"username", in.Username},
		{"password", in.Password},
		{"imgUrl", in.ImgURL},
		{"createdBy", in.CreatedBy},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, required(f.name)
		}
	}
	owner, _ := NormalizeID(in.CreatedBy)

	c := CredentialRequest{
		WebsiteName: in.WebsiteName,
		WebsiteURL:  in.WebsiteURL,
		Username:    in.Username,
		Password:    in.Password,
		ImgURL:      in.ImgURL,
		CreatedBy:   owner,
		CreatedAt:   s.opts.Clock().UTC().Format(time.RFC3339),
		Status:      CredentialRequested,
	}

	id, err := s.store.Insert(ctx, s.opts.Collections.Credentials, "", c.document())
	if err != nil {
		s.opts.log(ctx).Error("failed to create credential request", zap.String("created_by", owner), zap.Error(err))
		return nil, storeError(err, "credential request", "")
	}
	c.ID = id

	s.opts.Metrics.RecordTransition(credentialWorkflow, "", string(CredentialRequested))
	s.opts.log(ctx).Info("credential request created",
		zap.String("id", id),
		zap.String("created_by", owner),
		zap.String("website", c.WebsiteName),
	)

	return &c, nil
}

// Approve marks a request Created.
func (s *CredentialService) Approve(ctx context.Context, id string) (*CredentialRequest, error) {
	return s.decide(ctx, id, CredentialCreated)
}

// Reject marks a request UsernameExists.
func (s *CredentialService) Reject(ctx context.Context, id string) (*CredentialRequest, error) {
	return s.decide(ctx, id, CredentialUsernameExists)
}

func (s *CredentialService) decide(ctx context.Context, id string, outcome CredentialStatus) (*CredentialRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, required("id")
	}

	collection := s.opts.Collections.Credentials
	log := s.opts.log(ctx).With(zap.String("id", id))

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		if !store.IsNotFound(err) {
			log.Error("failed to load credential request", zap.Error(err))
		}
		return nil, storeError(err, "credential request", id)
	}

	current := credentialFromRecord(id, doc).Status
	if current.Terminal() {
		if s.opts.StrictTransitions {
			return nil, fmt.Errorf("%w: credential request %s is already %s", ErrInvalidTransition, id, current)
		}
		log.Warn("re-deciding credential request",
			zap.String("from", string(current)),
			zap.String("to", string(outcome)),
		)
	}

	fields := store.Document{"status": string(outcome)}
	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		if !store.IsNotFound(err) {
			log.Error("failed to update credential request", zap.Error(err))
		}
		return nil, storeError(err, "credential request", id)
	}

	s.opts.Metrics.RecordTransition(credentialWorkflow, string(current), string(outcome))
	log.Info("credential request decided",
		zap.String("from", string(current)),
		zap.String("to", string(outcome)),
	)

	c := credentialFromRecord(id, doc.Merge(fields))
	return &c, nil
}

// ChangePassword replaces the stored password of a request owned by userID.
// It is not a status transition.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, id, newPassword string) error {
	owner, ok := NormalizeID(userID)
	if !ok {
		return required("userId")
	}
	if strings.TrimSpace(id) == "" {
		return required("selectedId")
	}
	if newPassword == "" {
		return required("newPassword")
	}

	collection := s.opts.Collections.Credentials
	log := s.opts.log(ctx).With(zap.String("id", id))

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return storeError(err, "credential request", id)
	}

	if !sameID(doc["createdBy"], owner) {
		log.Warn("password change by non-owner", zap.String("user_id", owner))
		return fmt.Errorf("%w: credential request %s is not owned by %s", ErrForbidden, id, owner)
	}

	if err := s.store.Update(ctx, collection, id, store.Document{"password": newPassword}); err != nil {
		log.Error("failed to change password", zap.Error(err))
		return storeError(err, "credential request", id)
	}

	log.Info("credential password changed")
	return nil
}

// List returns the requests of one user, or all requests when createdBy
// is empty.
func (s *CredentialService) List(ctx context.Context, createdBy string) ([]CredentialRequest, error) {
	var filters []store.Filter
	if owner, ok := NormalizeID(createdBy); ok {
		filters = append(filters, store.Eq("createdBy", owner))
	}

	recs, err := s.store.Query(ctx, s.opts.Collections.Credentials, filters...)
	if err != nil {
		s.opts.log(ctx).Error("failed to list credential requests", zap.String("created_by", createdBy), zap.Error(err))
		return nil, storeError(err, "credential requests", "")
	}

	out := make([]CredentialRequest, 0, len(recs))
	for _, rec := range recs {
		out = append(out, credentialFromRecord(rec.ID, rec.Data))
	}
	return out, nil
}
