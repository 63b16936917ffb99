package database

import (
	"github.com/pkg/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nosql-labs/common/log"
)

// Dialector picks the gorm driver for name: mysql, postgres, sqlite or sqlserver.
func Dialector(name, dsn string) (gorm.Dialector, error) {
	switch name {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	case "sqlserver", "mssql":
		return sqlserver.Open(dsn), nil
	}
	return nil, errors.Errorf("unsupported sql driver %q", name)
}

// Open connects with gorm and adds tracing when it is enabled.
func Open(driver, dsn string) (*gorm.DB, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if log.UptraceOk() {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return db, nil
}
