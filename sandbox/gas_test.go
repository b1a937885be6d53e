package sandbox

import "testing"

func TestEstimateGasScalesWithSourceLength(t *testing.T) {
	short := EstimateGas(`function Execute(i,s){return [i,s];}`)
	long := EstimateGas(`function Execute(i,s){var a=1;var b=2;var c=a+b;return [i,s+c];}`)
	if !long.GreaterThan(short) {
		t.Fatalf("expected longer source to cost more gas: short=%s long=%s", short, long)
	}
}

func TestEstimateGasEmptySourceIsZero(t *testing.T) {
	if !EstimateGas("").IsZero() {
		t.Fatal("expected zero gas for empty source")
	}
}
