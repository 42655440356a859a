package meta

import (
	"time"

	"gorm.io/datatypes"
)

// ReceiptModel is the SQL projection of a journal.Receipt.
type ReceiptModel struct {
	// Hash is the id of the written vanity commit.
	Hash string `gorm:"primaryKey;type:varchar(64)"`

	Old string `gorm:"type:varchar(64);not null"`
	Ref string `gorm:"type:varchar(255)"`

	// Nonce is kept in hex: sqlite rejects uint64 values above MaxInt64.
	Nonce    string `gorm:"type:varchar(16);not null"`
	Hashes   int64
	Duration int64 // nanoseconds

	// Target holds {"algorithm", "prefix", "message"}.
	Target datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

func (ReceiptModel) TableName() string {
	return "receipts"
}

type targetJSON struct {
	Algorithm string `json:"algorithm"`
	Prefix    string `json:"prefix,omitempty"`
	Message   string `json:"message,omitempty"`
}
