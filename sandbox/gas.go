package sandbox

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// gasPerNode is the per-token cost constant backing EstimateGas (Design
// Notes Open Question decision #1: "AST-node count x constant").
var gasPerNode = decimal.NewFromInt(1)

var tokenRe = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*|[0-9]+(\.[0-9]+)?|[{}()\[\];,.:+\-*/%=<>!&|^~?]`)

// GasEstimator is a pluggable gas cost policy, swappable per deployment
// flow rather than hardcoded into ContractStore.
type GasEstimator func(source string) decimal.Decimal

// EstimateGas approximates the spec's "length and AST node counts" cost
// function (spec §4.3's gas estimate note) by counting lexical tokens as a
// stand-in for parse-tree node count — a lightweight proxy chosen because
// the exact cost function is explicitly left as an implementer's choice.
func EstimateGas(source string) decimal.Decimal {
	n := len(tokenRe.FindAllString(source, -1))
	return gasPerNode.Mul(decimal.NewFromInt(int64(n)))
}
