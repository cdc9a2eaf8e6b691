package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	lands      interfaces.LandStorage
	domains    interfaces.DomainStorage
	exprs      interfaces.ExpressionStorage
	links      interfaces.LinkStorage
	media      interfaces.MediaStorage
	words      interfaces.WordStorage
	paragraphs interfaces.ParagraphStorage
	jobs       interfaces.JobStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.StorageConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}
	return NewManagerWithDB(logger, db), nil
}

// NewManagerWithDB wires entity storages over an already open connection.
func NewManagerWithDB(logger arbor.ILogger, db *BadgerDB) interfaces.StorageManager {
	manager := &Manager{
		db:         db,
		lands:      NewLandStorage(db, logger),
		domains:    NewDomainStorage(db, logger),
		exprs:      NewExpressionStorage(db, logger),
		links:      NewLinkStorage(db, logger),
		media:      NewMediaStorage(db, logger),
		words:      NewWordStorage(db, logger),
		paragraphs: NewParagraphStorage(db, logger),
		jobs:       NewJobStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager
}

func (m *Manager) Lands() interfaces.LandStorage             { return m.lands }
func (m *Manager) Domains() interfaces.DomainStorage         { return m.domains }
func (m *Manager) Expressions() interfaces.ExpressionStorage { return m.exprs }
func (m *Manager) Links() interfaces.LinkStorage             { return m.links }
func (m *Manager) Media() interfaces.MediaStorage            { return m.media }
func (m *Manager) Words() interfaces.WordStorage             { return m.words }
func (m *Manager) Paragraphs() interfaces.ParagraphStorage   { return m.paragraphs }
func (m *Manager) Jobs() interfaces.JobStorage               { return m.jobs }

// DB exposes the underlying BadgerDB for components that need raw access,
// such as the durable queue.
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
