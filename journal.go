package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/message"
)

// SignedMessageRecord is a journal entry for a message signed by this tool.
// Signed keeps the full signed message so it can be pushed again later.
type SignedMessageRecord struct {
	ID        uint            `gorm:"primaryKey"`
	Cid       string          `gorm:"column:cid;type:varchar(128);not null;uniqueIndex:idx_signed_messages_cid"`
	From      address.Address `gorm:"column:from_address;type:varchar(128);not null;index:idx_signed_messages_from_nonce"`
	To        address.Address `gorm:"column:to_address;type:varchar(128);not null"`
	Nonce     uint64          `gorm:"column:nonce;not null;index:idx_signed_messages_from_nonce"`
	Method    uint64          `gorm:"column:method;not null"`
	Value     string          `gorm:"column:value;type:text;not null"`
	Pushed    bool            `gorm:"column:pushed;not null;default:false"`
	Signed    datatypes.JSON  `gorm:"column:signed_message"`
	CreatedAt time.Time
}

// ErrMessageNotFound is returned for CIDs the journal has never seen.
var ErrMessageNotFound = fmt.Errorf("message not found in journal")

// TableName specifies the table name for SignedMessageRecord
func (SignedMessageRecord) TableName() string {
	return "signed_messages"
}

type SortType string

const (
	SortTypeAscending  SortType = "asc"
	SortTypeDescending SortType = "desc"
)

func (s SortType) ToString() string {
	return strings.ToUpper(string(s))
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListOptions pages through journal entries.
type ListOptions struct {
	Offset uint32
	Limit  uint32
	Sort   *SortType
}

func applyListOptions(db *gorm.DB, sortBy string, defaultSort SortType, options *ListOptions) *gorm.DB {
	if options == nil {
		return db.Order(sortBy + " " + defaultSort.ToString())
	}

	sort := defaultSort
	if options.Sort != nil {
		sort = *options.Sort
	}
	db = db.Order(sortBy + " " + sort.ToString())

	limit := int(options.Limit)
	if limit == 0 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}
	return db.Offset(int(options.Offset)).Limit(limit)
}

// MessageJournal records signed messages and whether they were pushed.
type MessageJournal struct {
	db *gorm.DB
}

// NewMessageJournal creates a new MessageJournal instance
func NewMessageJournal(db *gorm.DB) *MessageJournal {
	return &MessageJournal{db: db}
}

// Record stores sm. Recording the same message twice keeps one entry.
func (j *MessageJournal) Record(ctx context.Context, sm *message.SignedMessage) error {
	c, err := sm.Cid()
	if err != nil {
		return err
	}

	rec := SignedMessageRecord{
		Cid:    c.String(),
		From:   sm.Message.From,
		To:     sm.Message.To,
		Nonce:  sm.Message.Nonce,
		Method: uint64(sm.Message.Method),
		Value:  sm.Message.Value.String(),
	}
	if rec.Signed, err = json.Marshal(sm); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	err = j.db.WithContext(ctx).Where("cid = ?", rec.Cid).FirstOrCreate(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// MarkPushed flags the entry with the given CID as accepted by the node.
func (j *MessageJournal) MarkPushed(ctx context.Context, cid string) error {
	return j.db.WithContext(ctx).Model(&SignedMessageRecord{}).Where("cid = ?", cid).Update("pushed", true).Error
}

// History returns the entries sent from addr, newest first by default. An
// empty addr lists every sender.
func (j *MessageJournal) History(ctx context.Context, from address.Address, options *ListOptions) ([]SignedMessageRecord, error) {
	query := applyListOptions(j.db.WithContext(ctx), "id", SortTypeDescending, options)
	if !from.Empty() {
		query = query.Where("from_address = ?", from)
	}

	var records []SignedMessageRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns the entry with the given CID.
func (j *MessageJournal) Get(ctx context.Context, cid string) (*SignedMessageRecord, error) {
	var rec SignedMessageRecord
	err := j.db.WithContext(ctx).Where("cid = ?", cid).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, cid)
	} else if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SignedMessage decodes the stored message.
func (r *SignedMessageRecord) SignedMessage() (*message.SignedMessage, error) {
	if len(r.Signed) == 0 {
		return nil, fmt.Errorf("%w: %s has no stored payload", ErrMessageNotFound, r.Cid)
	}
	var sm message.SignedMessage
	if err := json.Unmarshal(r.Signed, &sm); err != nil {
		return nil, fmt.Errorf("failed to decode stored message: %w", err)
	}
	return &sm, nil
}
