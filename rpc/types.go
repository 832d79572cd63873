package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"creditvault/config"
)

// decodeParams unmarshals the single object-style parameter into out.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object, got %d", len(req.Params))
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object: %w", err)
	}
	return nil
}

func parseAddress(raw string) ([20]byte, error) {
	return config.ParseAddress(raw)
}

func parseAmount(raw string) (*big.Int, error) {
	return config.ParseAmount(raw)
}

func addrHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func addrHexList(addrs [][20]byte) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addrHex(addr))
	}
	return out
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// writeEngineError reports a rejected state transition. Engine errors are
// domain failures, not transport failures, so they all map to the generic
// server error code with the sentinel text as data.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeServerError, "operation rejected", err.Error())
}
