// Package all enables every built-in storage backend. Import it for side
// effects:
//
//	import _ "prodstats/internal/storage/all"
//
// after which storage.New accepts the kinds "sqlite", "postgres", "mssql"
// and "mysql".
package all

import (
	_ "prodstats/internal/storage/mssql"
	_ "prodstats/internal/storage/mysql"
	_ "prodstats/internal/storage/postgres"
	_ "prodstats/internal/storage/sqlite"
)
