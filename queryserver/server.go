// Package queryserver serves the read-only block-explorer query surface
// (spec §6 "GetBlockCount, GetBlock/<i>, GetContractCode/<name>,
// GetUserTransactions/<address>... stable JSON objects mirroring the
// in-memory entities"). It is deliberately read-only: no write handlers
// exist, matching spec §1's exclusion of the full REST/explorer UI — this
// package exists only to give that external collaborator something real
// to call.
package queryserver

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"smartxchain/core"
)

// ChainView is the read-only chain surface the query handlers need.
type ChainView interface {
	Len() int
	BlockAt(index uint64) (*core.Block, error)
	Blocks() []*core.Block
}

// ContractView is the read-only contract store surface the query handlers
// need.
type ContractView interface {
	Get(name string) (*core.ContractRecord, error)
}

// NewRouter builds the query surface's chi.Router.
func NewRouter(chain ChainView, contracts ContractView) chi.Router {
	r := chi.NewRouter()
	r.Get("/GetBlockCount", getBlockCount(chain))
	r.Get("/GetBlock/{index}", getBlock(chain))
	r.Get("/GetContractCode/{name}", getContractCode(contracts))
	r.Get("/GetUserTransactions/{address}", getUserTransactions(chain))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func getBlockCount(chain ChainView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"count": chain.Len()})
	}
}

func getBlock(chain ChainView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed index")
			return
		}
		blk, err := chain.BlockAt(idx)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		envelope, err := blk.RLPEnvelope()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode rlp envelope: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, struct {
			*core.Block
			RLPEnvelope string `json:"rlpEnvelope"`
		}{Block: blk, RLPEnvelope: hex.EncodeToString(envelope)})
	}
}

func getContractCode(contracts ContractView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		rec, err := contracts.Get(name)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"name":           rec.Name,
			"owner":          string(rec.Owner),
			"serializedCode": rec.SerializedCode,
		})
	}
}

func getUserTransactions(chain ChainView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := core.Address(chi.URLParam(r, "address"))
		var out []core.Transaction
		for _, blk := range chain.Blocks() {
			for _, tx := range blk.Transactions {
				if tx.Sender.Equal(addr) || tx.Recipient.Equal(addr) {
					out = append(out, tx)
				}
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
