package spaceweather

import "testing"

func TestXrayClass(t *testing.T) {
	cases := []struct {
		flux float64
		want string
	}{
		{0, ""},
		{-1, ""},
		{5e-8, "A5.0"},
		{2.3e-7, "B2.3"},
		{1e-6, "C1.0"},
		{7.5e-6, "C7.5"},
		{2e-5, "M2.0"},
		{1e-4, "X1.0"},
		{9.3e-4, "X9.3"},
	}
	for _, c := range cases {
		if got := xrayClass(c.flux); got != c.want {
			t.Fatalf("xrayClass(%g) = %q, want %q", c.flux, got, c.want)
		}
	}
}
