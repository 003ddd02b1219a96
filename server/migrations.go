package server

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// Open or create the main DB (accounts, sessions, uploaded recordings)
func openDB(log logs.Log, config dbh.DBConfig) (*gorm.DB, error) {
	log.Infof("Opening main DB")
	return dbh.OpenDB(log, config, migrations(log), 0)
}

func migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE auth_user(
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			username TEXT NOT NULL,
			username_normalized TEXT NOT NULL,
			email TEXT NOT NULL,
			password TEXT NOT NULL,
			site_permissions TEXT,
			created_at INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_auth_user_username_normalized ON auth_user(username_normalized);
		CREATE UNIQUE INDEX idx_auth_user_email ON auth_user(email);

		CREATE TABLE auth_session(
			key TEXT PRIMARY KEY,
			auth_user_id INT,
			created_at INT,
			expires_at INT
		);
		CREATE INDEX idx_auth_session_auth_user_id ON auth_session(auth_user_id);
		CREATE INDEX idx_auth_session_expires_at ON auth_session(expires_at);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE recording(
			id INTEGER PRIMARY KEY,
			created_by INT NOT NULL,
			created_at INT NOT NULL,
			filename TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			size INT NOT NULL
		);
		CREATE INDEX idx_recording_created_by ON recording(created_by);
	`))

	return migs
}
