package alertdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE alert(
			id INTEGER PRIMARY KEY,
			alert_type TEXT NOT NULL,
			user_email TEXT NOT NULL,
			timestamp INT NOT NULL
		);

		CREATE TABLE screenshot_alert(
			id INTEGER PRIMARY KEY,
			image_path TEXT NOT NULL,
			user_email TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			timestamp INT NOT NULL
		);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE INDEX idx_alert_timestamp ON alert(timestamp);
		CREATE INDEX idx_screenshot_alert_timestamp ON screenshot_alert(timestamp);
		CREATE INDEX idx_alert_user_email ON alert(user_email);
		CREATE INDEX idx_screenshot_alert_user_email ON screenshot_alert(user_email);
	`))

	return migs
}
