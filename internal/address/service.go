package address

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// Input is a create or update request. On update, IsDefault=false leaves the
// current default untouched; pick another address to move it.
type Input struct {
	RecipientName string
	Phone         string
	StreetLine1   string
	StreetLine2   string
	PostalCode    string
	City          string
	State         string
	IsDefault     bool
}

// Service is the address book.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, input Input) (*models.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	Lookup(ctx context.Context, postalCode string) (*Autofill, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     Repository
	resolver *Resolver
	tx       txRunner
}

func NewService(repo Repository, resolver *Resolver, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("address resolver required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, resolver: resolver, tx: tx}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	out, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	addr, err := s.repo.Find(ctx, userID, addressID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if addr == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return addr, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	resolved, err := s.resolver.Resolve(ctx, input.partial())
	if err != nil {
		return nil, err
	}

	addr := &models.Address{UserID: userID, IsDefault: input.IsDefault}
	apply(addr, resolved.Address)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.Count(ctx, userID)
		if err != nil {
			return err
		}
		if count == 0 {
			addr.IsDefault = true
		}
		if addr.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, addr)
	})
	if err != nil {
		return nil, writeErr(err, "create address")
	}
	return addr, nil
}

func (s *service) Update(ctx context.Context, userID, addressID uuid.UUID, input Input) (*models.Address, error) {
	addr, err := s.Get(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolver.Resolve(ctx, input.partial())
	if err != nil {
		return nil, err
	}
	apply(addr, resolved.Address)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.IsDefault && !addr.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
			addr.IsDefault = true
		}
		return repo.Save(ctx, addr)
	})
	if err != nil {
		return nil, writeErr(err, "update address")
	}
	return addr, nil
}

// Delete removes an address. Deleting the default leaves the user without
// one until they choose another.
func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, userID, addressID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

// SetDefault makes addressID the only default address of userID.
func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	var out *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		addr, err := repo.Find(ctx, userID, addressID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		if addr == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
		}
		if _, err := repo.MarkDefault(ctx, userID, addressID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark default address")
		}
		addr.IsDefault = true
		out = addr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Lookup(ctx context.Context, postalCode string) (*Autofill, error) {
	return s.resolver.Autofill(ctx, postalCode)
}

func (in Input) partial() PartialAddress {
	return PartialAddress{
		RecipientName: in.RecipientName,
		Phone:         in.Phone,
		StreetLine1:   in.StreetLine1,
		StreetLine2:   in.StreetLine2,
		PostalCode:    in.PostalCode,
		City:          in.City,
		State:         in.State,
	}
}

func apply(addr *models.Address, p PartialAddress) {
	addr.RecipientName = p.RecipientName
	addr.Phone = p.Phone
	addr.StreetLine1 = p.StreetLine1
	addr.StreetLine2 = nil
	if p.StreetLine2 != "" {
		line2 := p.StreetLine2
		addr.StreetLine2 = &line2
	}
	addr.PostalCode = p.PostalCode
	addr.City = p.City
	addr.State = p.State
}

// defaultIndex backs the one-default-per-user rule. Two concurrent writes
// that both claim the default trip it; the loser is told to retry.
const defaultIndex = "idx_addresses_one_default"

func writeErr(err error, op string) error {
	if db.IsUniqueViolation(err, defaultIndex) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "default address changed concurrently, retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
