package transport

import "net/http"

// genericInvocationHandler is the one HTTP endpoint every network
// transport here exposes. There is no wire codec or request dispatch in
// scope (spec §1 "Non-goals": "no request dispatch, no wire codec"); this
// just proves the endpoint is live and addressable, the way a control
// server's /ping route answers without doing anything beyond confirming
// the server is up.
func genericInvocationHandler(invoker Invoker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Service-Interface", invoker.InterfaceName)
		w.WriteHeader(http.StatusOK)
	}
}
