package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/tmarchetti/brickfolio-backend/internal/correlate"
	"github.com/tmarchetti/brickfolio-backend/pkg/config"
	"github.com/tmarchetti/brickfolio-backend/pkg/db"
	"github.com/tmarchetti/brickfolio-backend/pkg/db/models"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
	"github.com/tmarchetti/brickfolio-backend/pkg/security"
)

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash string) error
	EnsureProfile(ctx context.Context, profile *models.Profile) error
}

// Provisioner finds or creates the durable identity for a resolved email.
type Provisioner struct {
	users       userRepository
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// ProvisionerParams bundles the provisioner dependencies.
type ProvisionerParams struct {
	UserRepo       userRepository
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(params ProvisionerParams) (*Provisioner, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	return &Provisioner{
		users:       params.UserRepo,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

// Provision returns the user id for the resolution, creating the identity
// when possible. A nil id with a nil error means the identity could not be
// determined and the caller should persist the subscription unlinked. Only
// storage errors on the lookup path propagate; creation and credential
// failures degrade, because losing a payment record is worse than losing a
// credential update.
func (p *Provisioner) Provision(ctx context.Context, res correlate.Resolution, customerID string) (*uuid.UUID, error) {
	if res.UserID != nil && *res.UserID != uuid.Nil {
		// Caller pre-resolved the identity at checkout time.
		p.ensureProfile(ctx, *res.UserID, res.Email, customerID)
		return res.UserID, nil
	}
	if res.Email == "" {
		return nil, nil
	}

	existing, err := p.users.FindByEmail(ctx, res.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user by email")
	}

	if existing != nil {
		// Existing customer starting a new subscription. The checkout flow
		// doubles as a password reset, so an accompanying secret replaces
		// the stored credential. Failure here is non-fatal: a stale
		// credential beats a lost subscription record.
		if res.HandoffSecret != "" {
			if err := p.overwriteCredential(ctx, existing.ID, res.HandoffSecret); err != nil && p.logg != nil {
				p.logg.Warn(p.logg.WithUserID(ctx, existing.ID.String()), "credential overwrite failed, continuing with subscription link")
			}
		}
		p.ensureProfile(ctx, existing.ID, res.Email, customerID)
		return &existing.ID, nil
	}

	if res.HandoffSecret == "" {
		// No identity and no credential to create one with.
		return nil, nil
	}

	created, err := p.createVerified(ctx, res.Email, res.HandoffSecret)
	if err != nil {
		if p.logg != nil {
			p.logg.Error(ctx, "identity creation failed, subscription will persist unlinked", err)
		}
		return nil, nil
	}
	p.ensureProfile(ctx, created.ID, res.Email, customerID)
	id := created.ID
	return &id, nil
}

// createVerified inserts the identity with the email pre-verified: trust is
// established transitively through the successful payment. A unique-index
// conflict means a concurrent delivery won the race, so the winner's row is
// adopted.
func (p *Provisioner) createVerified(ctx context.Context, email, secret string) (*models.User, error) {
	hash, err := security.HashPassword(secret, p.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash handoff secret")
	}

	user := &models.User{
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: true,
	}
	if err := p.users.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "idx_users_email") {
			winner, findErr := p.users.FindByEmail(ctx, email)
			if findErr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (p *Provisioner) overwriteCredential(ctx context.Context, id uuid.UUID, secret string) error {
	hash, err := security.HashPassword(secret, p.passwordCfg)
	if err != nil {
		return err
	}
	return p.users.UpdateCredential(ctx, id, hash)
}

func (p *Provisioner) ensureProfile(ctx context.Context, userID uuid.UUID, email, customerID string) {
	profile := &models.Profile{
		UserID: userID,
		Email:  email,
	}
	if customerID != "" {
		profile.StripeCustomerID = &customerID
	}
	if err := p.users.EnsureProfile(ctx, profile); err != nil && p.logg != nil {
		p.logg.Warn(p.logg.WithUserID(ctx, userID.String()), "profile upsert failed")
	}
}
