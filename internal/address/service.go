package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages saved shipping addresses.
type Service interface {
	List(ctx context.Context, shopperID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, shopperID uuid.UUID, input CreateInput) (*models.Address, error)
	Resolve(ctx context.Context, shopperID, addressID uuid.UUID) (*models.Address, error)
}

type service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// CreateInput is a new address as submitted by the shopper.
type CreateInput struct {
	Title      string
	FullName   string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
}

// NotFoundError is returned when the address is unknown or belongs to
// another shopper.
func NotFoundError(addressID uuid.UUID) error {
	return pkgerrors.NewReason(pkgerrors.CodeNotFound, pkgerrors.ReasonAddressNotFound, "address not found").
		WithDetails(map[string]any{"address_id": addressID})
}

func (s *service) List(ctx context.Context, shopperID uuid.UUID) ([]models.Address, error) {
	addresses, err := s.repo.ListByShopper(ctx, shopperID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addresses, nil
}

func (s *service) Create(ctx context.Context, shopperID uuid.UUID, input CreateInput) (*models.Address, error) {
	input = input.normalized()
	if missing := input.missingFields(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is incomplete").
			WithDetails(map[string]any{"missing_fields": missing})
	}

	address := &models.Address{
		ShopperID:  shopperID,
		Title:      input.Title,
		FullName:   input.FullName,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    input.Country,
		IsDefault:  input.IsDefault,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountByShopper(ctx, shopperID)
		if err != nil {
			return err
		}
		if count == 0 {
			address.IsDefault = true
		}
		if address.IsDefault {
			if err := repo.ClearDefault(ctx, shopperID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return address, nil
}

func (s *service) Resolve(ctx context.Context, shopperID, addressID uuid.UUID) (*models.Address, error) {
	return Resolve(ctx, s.repo, shopperID, addressID)
}

// Resolve loads an address owned by shopperID. Callers inside a transaction
// pass a repository bound to it.
func Resolve(ctx context.Context, repo *Repository, shopperID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, NotFoundError(addressID)
	}
	address, err := repo.FindForShopper(ctx, shopperID, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(addressID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return address, nil
}

func (in CreateInput) normalized() CreateInput {
	trim := strings.TrimSpace
	return CreateInput{
		Title:      trim(in.Title),
		FullName:   trim(in.FullName),
		Phone:      trim(in.Phone),
		Line1:      trim(in.Line1),
		Line2:      trim(in.Line2),
		City:       trim(in.City),
		State:      trim(in.State),
		PostalCode: trim(in.PostalCode),
		Country:    strings.ToUpper(trim(in.Country)),
		IsDefault:  in.IsDefault,
	}
}

func (in CreateInput) missingFields() []string {
	var missing []string
	if in.FullName == "" {
		missing = append(missing, "full_name")
	}
	if in.Line1 == "" {
		missing = append(missing, "line1")
	}
	if in.City == "" {
		missing = append(missing, "city")
	}
	if in.Country == "" {
		missing = append(missing, "country")
	}
	return missing
}
