/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package storage

import (
	"fmt"

	"github.com/jabberwock-im/jabberwock/storage/memstorage"
	"github.com/jabberwock-im/jabberwock/storage/mysql"
	"github.com/jabberwock-im/jabberwock/storage/repository"
)

// New initializes configured storage type and returns associated container.
func New(config *Config) (repository.Container, error) {
	switch config.Type {
	case MySQL:
		return mysql.New(&mysql.Config{
			Host:     config.MySQL.Host,
			User:     config.MySQL.User,
			Password: config.MySQL.Password,
			Database: config.MySQL.Database,
			PoolSize: config.MySQL.PoolSize,
		})
	case Memory:
		return memstorage.New(), nil
	default:
		return nil, fmt.Errorf("storage: unrecognized storage type: %d", config.Type)
	}
}
