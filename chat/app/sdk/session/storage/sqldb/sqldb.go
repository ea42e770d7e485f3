// Package sqldb provides the durable session storage policy on a local
// sqlite file. The auth record survives restarts; a corrupt or unreadable
// row is treated as absent, never surfaced as a failure.
package sqldb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/walletchat/wchat/chat/app/sdk/session"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	dbDirName  = "db"
	dbFileName = "session.db"
)

// Storage persists the single auth record as a singleton row.
type Storage struct {
	db *gorm.DB
}

type authRecord struct {
	Singleton     bool   `gorm:"primaryKey;default:true"`
	WalletAddress string `gorm:"column:wallet_address"`
	Signature     string `gorm:"column:signature"`
	Challenge     string `gorm:"column:challenge"`
	CreatedAt     int64  `gorm:"column:created_at"`
	Username      string `gorm:"column:username"`
	UserWallet    string `gorm:"column:user_wallet"`
	Token         string `gorm:"column:token"`
}

// New opens (or creates) the sqlite file under the specified directory. A
// file that can't be opened or migrated is treated the same as a corrupt
// row: the record is absent, so the file is replaced and the client starts
// with an empty session rather than refusing to run.
func New(filePath string) (*Storage, error) {
	dbFileDir := filepath.Join(filePath, dbDirName)
	os.MkdirAll(dbFileDir, os.ModePerm)

	fileName := filepath.Join(dbFileDir, dbFileName)

	db, err := open(fileName)
	if err != nil {
		os.Remove(fileName)

		db, err = open(fileName)
		if err != nil {
			return nil, err
		}
	}

	return &Storage{db: db}, nil
}

func open(fileName string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(fileName), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	if err := db.AutoMigrate(&authRecord{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}

// Retrieve returns the stored record. Missing, unreadable or nonsensical
// rows all report ErrNoRecord.
func (s *Storage) Retrieve() (session.AuthRecord, error) {
	var row authRecord
	if err := s.db.First(&row).Error; err != nil {
		return session.AuthRecord{}, session.ErrNoRecord
	}

	if !common.IsHexAddress(row.WalletAddress) {
		return session.AuthRecord{}, session.ErrNoRecord
	}

	rec := session.AuthRecord{
		WalletAddress: common.HexToAddress(row.WalletAddress),
		Signature:     row.Signature,
		Challenge:     row.Challenge,
		CreatedAt:     time.Unix(row.CreatedAt, 0).UTC(),
		Token:         row.Token,
	}

	if row.Username != "" {
		rec.User = &session.UserRef{
			Username:      row.Username,
			WalletAddress: row.UserWallet,
		}
	}

	return rec, nil
}

// Save replaces the singleton row with the record.
func (s *Storage) Save(rec session.AuthRecord) error {
	row := authRecord{
		Singleton:     true,
		WalletAddress: rec.WalletAddress.Hex(),
		Signature:     rec.Signature,
		Challenge:     rec.Challenge,
		CreatedAt:     rec.CreatedAt.Unix(),
		Token:         rec.Token,
	}

	if rec.User != nil {
		row.Username = rec.User.Username
		row.UserWallet = rec.User.WalletAddress
	}

	if res := s.db.Save(&row); res.Error != nil {
		return fmt.Errorf("save record: %w", res.Error)
	}

	return nil
}

// Delete removes the singleton row. Deleting twice is the same as once.
func (s *Storage) Delete() error {
	if res := s.db.Where("singleton = ?", true).Delete(&authRecord{}); res.Error != nil {
		return fmt.Errorf("delete record: %w", res.Error)
	}

	return nil
}
