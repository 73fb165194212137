package main

import (
	"fmt"

	"github.com/fleetlink/nanoshare/history"
	historydiskv "github.com/fleetlink/nanoshare/history/diskv"
	historyinmem "github.com/fleetlink/nanoshare/history/inmem"
	historymysql "github.com/fleetlink/nanoshare/history/mysql"

	_ "github.com/go-sql-driver/mysql"
)

func parseStorage(name, dsn string) (history.Storage, error) {
	switch name {
	case "inmem":
		return historyinmem.New(), nil
	case "file", "diskv":
		if dsn == "" {
			dsn = "db"
		}
		return historydiskv.New(dsn), nil
	case "mysql":
		return historymysql.New(historymysql.WithDSN(dsn))
	default:
		return nil, fmt.Errorf("unknown storage: %s", name)
	}
}
