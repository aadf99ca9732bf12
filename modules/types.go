package modules

import "net/http"

// Module is a http handler mounted by serve command.
type Module interface {
	Shutdown()
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
