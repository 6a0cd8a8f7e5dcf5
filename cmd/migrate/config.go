package main

import "os"

const defaultMigrationsDir = "db/migrations"

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return defaultMigrationsDir
}
