package queryserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"smartxchain/core"
)

func testAddr(t *testing.T, suffix byte) core.Address {
	t.Helper()
	hex := []byte("0000000000000000000000000000000000000000")
	hex[len(hex)-1] = suffix
	a, err := core.NewAddress("smartX" + string(hex))
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	return a
}

func TestGetBlockCount(t *testing.T) {
	miner := testAddr(t, '1')
	chain := core.NewChain(miner, nil)
	router := NewRouter(chain, core.NewContractStore())

	req := httptest.NewRequest(http.MethodGet, "/GetBlockCount", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["count"] != 1 {
		t.Fatalf("count = %d, want 1", body["count"])
	}
}

func TestGetBlockNotFound(t *testing.T) {
	miner := testAddr(t, '1')
	chain := core.NewChain(miner, nil)
	router := NewRouter(chain, core.NewContractStore())

	req := httptest.NewRequest(http.MethodGet, "/GetBlock/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetContractCode(t *testing.T) {
	owner := testAddr(t, '1')
	store := core.NewContractStore()
	if _, err := store.Deploy("Token", owner, "encoded-code", decimal.Zero, "{}"); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	router := NewRouter(core.NewChain(owner, nil), store)

	req := httptest.NewRequest(http.MethodGet, "/GetContractCode/Token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["serializedCode"] != "encoded-code" {
		t.Fatalf("serializedCode = %q", body["serializedCode"])
	}
}

func TestGetUserTransactions(t *testing.T) {
	miner := testAddr(t, '1')
	alice := testAddr(t, '2')
	chain := core.NewChain(miner, nil)
	grant := core.NewReward(core.TxMinerReward, alice, decimal.NewFromInt(50))
	if err := chain.AppendTransaction(grant, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := chain.MinePending(miner, nil); err != nil {
		t.Fatalf("mine: %v", err)
	}

	router := NewRouter(chain, core.NewContractStore())
	req := httptest.NewRequest(http.MethodGet, "/GetUserTransactions/"+string(alice), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var txs []core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("len = %d, want 1", len(txs))
	}
}
