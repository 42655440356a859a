package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gitvanity/pkg/journal"
	"gitvanity/pkg/storage"
	"gitvanity/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// Repository stores receipts in SQL. It implements journal.ReceiptIndex.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

var _ journal.ReceiptIndex = (*Repository)(nil)

// IndexReceipt inserts r. Recording the same commit twice keeps the first
// receipt.
func (r *Repository) IndexReceipt(ctx context.Context, rec journal.Receipt) error {
	model, err := toModel(rec)
	if err != nil {
		return err
	}
	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to index receipt: %w", err)
	}
	return nil
}

// ListReceipts returns every receipt, newest first.
func (r *Repository) ListReceipts(ctx context.Context) ([]journal.Receipt, error) {
	var models []ReceiptModel
	err := r.db.GetConn().WithContext(ctx).
		Order("created_at DESC").
		Order("hash ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	out := make([]journal.Receipt, 0, len(models))
	for i := range models {
		rec, err := fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// FindReceipt resolves an abbreviated commit id.
func (r *Repository) FindReceipt(ctx context.Context, prefix types.HashPrefix) (*journal.Receipt, error) {
	p, err := storage.CheckPrefix(prefix)
	if err != nil {
		return nil, err
	}

	// two rows are enough to tell unique from ambiguous
	var models []ReceiptModel
	err = r.db.GetConn().WithContext(ctx).
		Where("hash LIKE ?", p+"%").
		Order("hash ASC").
		Limit(2).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up receipt: %w", err)
	}

	switch len(models) {
	case 0:
		return nil, fmt.Errorf("%w: %s", journal.ErrNoReceipt, prefix)
	case 1:
		return fromModel(&models[0])
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrAmbiguousID, prefix)
	}
}

func toModel(rec journal.Receipt) (ReceiptModel, error) {
	target, err := json.Marshal(targetJSON{Algorithm: rec.Algorithm, Prefix: rec.Prefix, Message: rec.Message})
	if err != nil {
		return ReceiptModel{}, fmt.Errorf("failed to marshal target: %w", err)
	}
	return ReceiptModel{
		Hash:      rec.New.String(),
		Old:       rec.Old.String(),
		Ref:       rec.Ref,
		Nonce:     strconv.FormatUint(rec.Nonce, 16),
		Hashes:    int64(rec.Hashes),
		Duration:  int64(rec.Duration),
		Target:    datatypes.JSON(target),
		CreatedAt: rec.CreatedAt.UTC(),
	}, nil
}

func fromModel(m *ReceiptModel) (*journal.Receipt, error) {
	nonce, err := strconv.ParseUint(m.Nonce, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt %s: nonce %q", journal.ErrCorrupt, m.Hash, m.Nonce)
	}
	var target targetJSON
	if len(m.Target) > 0 {
		if err := json.Unmarshal(m.Target, &target); err != nil {
			return nil, fmt.Errorf("%w: receipt %s: %w", journal.ErrCorrupt, m.Hash, err)
		}
	}
	return &journal.Receipt{
		Old:       types.Hash(m.Old),
		New:       types.Hash(m.Hash),
		Ref:       m.Ref,
		Nonce:     nonce,
		Algorithm: target.Algorithm,
		Prefix:    target.Prefix,
		Message:   target.Message,
		Hashes:    uint64(m.Hashes),
		Duration:  time.Duration(m.Duration),
		CreatedAt: m.CreatedAt,
	}, nil
}
