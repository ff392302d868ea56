package storage

import (
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/storage/badger"
)

// NewManager creates the storage manager for the configured backend.
// Badger is the only backend today.
func NewManager(logger arbor.ILogger, config *common.StorageConfig) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &config.Badger)
}
