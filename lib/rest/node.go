package rest

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/uol/gobol/rip"
)

//
// Has some methods to collect information about the telnet connections and the ledger
// author: rnojiri
//

// URIConnections - the uri from the get connections
const URIConnections string = "node/connections"

// HTTPHeaderTotalConnections - the header name to set the total connections number
const HTTPHeaderTotalConnections string = "X-Total-Connections"

// countConnections - returns the number of telnet connections from this node
func (trest *REST) countConnections(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {

	w.Header().Add(HTTPHeaderTotalConnections, strconv.FormatUint(uint64(trest.connections.NumConnections()), 10))
	w.WriteHeader(http.StatusOK)
}

type ledgerStatus struct {
	Pending int `json:"pending"`
}

// ledgerStatus - returns the number of points waiting for acknowledgment
func (trest *REST) ledgerStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {

	rip.SuccessJSON(w, http.StatusOK, ledgerStatus{Pending: trest.pending.Len()})
}
