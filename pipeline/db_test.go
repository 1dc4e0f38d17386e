package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"linkreach/models"
)

// newTestDB opens an isolated in-memory database per test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Campaign{},
		&models.TargetDomain{},
		&models.OutreachEmail{},
		&models.EmailSearchQueue{},
		&models.EmailQueue{},
		&models.Sender{},
		&models.SenderHealth{},
		&models.InboundReply{},
		&models.SystemSetting{},
		&models.Template{},
	))
	return db
}
