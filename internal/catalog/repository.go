package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads variants and owns the stock counter.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindVariant loads the variant together with its product.
func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindVariants loads several variants keyed by id; unknown ids are absent.
func (r *Repository) FindVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProductVariant, error) {
	result := make(map[uuid.UUID]models.ProductVariant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id IN ?", ids).
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		result[v.ID] = v
	}
	return result, nil
}

// DecrementStock takes qty units when at least qty are on hand and the
// variant is active. It reports false, without error, when the guard fails.
func (r *Repository) DecrementStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock_quantity >= ? AND is_active = ?", variantID, qty, true).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementStock returns qty units to the variant.
func (r *Repository) IncrementStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty)).Error
}

// StockOf returns the current stock counter, or -1 when the variant is unknown.
func (r *Repository) StockOf(ctx context.Context, variantID uuid.UUID) (int, error) {
	var stock []int
	err := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Pluck("stock_quantity", &stock).Error
	if err != nil {
		return 0, err
	}
	if len(stock) == 0 {
		return -1, nil
	}
	return stock[0], nil
}

// SearchProducts returns active products whose name contains query, prefix
// matches first.
func (r *Repository) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	needle := escapeLike(strings.ToLower(query))
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+needle+"%").
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                `CASE WHEN LOWER(name) LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, name ASC`,
			Vars:               []any{needle + "%"},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
