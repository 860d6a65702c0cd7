package round

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRound4(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{2.616666666, 2.6167},
		{-22.35, -22.35},
		{-0.162011173, -0.162},
		{36.699999999, 36.7},
		{0.00004, 0},
		{-0.00004, 0},
		{1.00005, 1.0001},
	}
	for _, c := range cases {
		if got := Round4(c.in); got != c.want {
			t.Errorf("Round4(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if got := Round4(math.Inf(1)); !math.IsInf(got, 1) {
		t.Errorf("Round4(+Inf) = %v", got)
	}
}

func TestPtr(t *testing.T) {
	if Ptr(nil) != nil {
		t.Fatal("Ptr(nil) should stay nil")
	}
	v := 32.00001
	if got := Ptr(&v); got == nil || *got != 32 {
		t.Fatalf("Ptr(32.00001) = %v", got)
	}
}

// 属性：舍入幂等，且误差不超过半个最小单位
func TestRound4_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("舍入幂等", prop.ForAll(
		func(v float64) bool {
			r := Round4(v)
			return Round4(r) == r
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("误差有界", prop.ForAll(
		func(v float64) bool {
			return math.Abs(Round4(v)-v) <= 0.00005+1e-9
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
