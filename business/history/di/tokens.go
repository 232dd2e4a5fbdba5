// Package di contains dependency injection tokens for the history context.
package di

import (
	"github.com/fd1az/torus-bridge/business/history/app"
	"github.com/fd1az/torus-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	HistoryService = di.NewToken[*app.Service]("history.Service")
	URLState       = di.NewToken[*app.URLState]("history.URLState")
	Recovery       = di.NewToken[*app.Recovery]("history.Recovery")
)

// Private dependency tokens - internal to history module
var (
	Store     = di.NewToken[app.Store]("history:store")
	Navigator = di.NewToken[app.Navigator]("history:navigator")
)

// Helper functions for type-safe access
func GetHistoryService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, HistoryService)
}

func GetURLState(c di.ServiceRegistry) *app.URLState {
	return di.GetToken(c, URLState)
}

func GetRecovery(c di.ServiceRegistry) *app.Recovery {
	return di.GetToken(c, Recovery)
}

func GetStore(c di.ServiceRegistry) app.Store {
	return di.GetToken(c, Store)
}

func GetNavigator(c di.ServiceRegistry) app.Navigator {
	return di.GetToken(c, Navigator)
}
