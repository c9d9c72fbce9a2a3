package ethereum

import (
	"math"
	"math/big"
	"testing"
)

func TestWeiRoundTrip(t *testing.T) {
	wei := ToWei(0.1)
	if wei.String() != "100000000000000000" {
		t.Fatalf("ToWei(0.1) = %s", wei)
	}
	if got := FromWei(wei); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("FromWei round trip: %f", got)
	}
}

func TestTokenUnits(t *testing.T) {
	units := ToTokenUnits(2.5, 6)
	if units.String() != "2500000" {
		t.Fatalf("ToTokenUnits(2.5, 6) = %s", units)
	}
	if got := FromTokenUnits(units, 6); math.Abs(got-2.5) > 1e-9 {
		t.Fatalf("FromTokenUnits round trip: %f", got)
	}

	// 18-decimal tokens exceed int64 range; big.Int must hold them.
	large := ToTokenUnits(1000, 18)
	if large.Cmp(big.NewInt(math.MaxInt64)) <= 0 {
		t.Fatal("expected amount above int64 range")
	}
}

func TestNilInputs(t *testing.T) {
	if FromWei(nil) != 0 {
		t.Fatal("FromWei(nil) should be 0")
	}
	if FromTokenUnits(nil, 18) != 0 {
		t.Fatal("FromTokenUnits(nil) should be 0")
	}
}
