package extract

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string // decimal string, empty means error expected
	}{
		{"pound with thousands", "£1,234,567.89", "1234567.89"},
		{"plain integer", "500", "500"},
		{"negative sign", "-42.50", "-42.5"},
		{"parenthesised credit", "(£500.00)", "-500"},
		{"internal spaces", "£ 2 000", "2000"},
		{"dollar symbol", "$99.99", "99.99"},

		{"empty", "", ""},
		{"words only", "free", ""},
		{"symbols only", "£", ""},
		{"double decimal point", "1.2.3", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.want == "" {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %s, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tc.in, err)
			}
			if got.String() != tc.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestLooksNumeric(t *testing.T) {
	yes := []string{"£1,234.56", "(500)", "42", "-1.5", "£ 2 000"}
	no := []string{"", "N/A", "See note 3", "TOTAL", "-"}
	for _, s := range yes {
		if !looksNumeric(s) {
			t.Errorf("looksNumeric(%q) = false, want true", s)
		}
	}
	for _, s := range no {
		if looksNumeric(s) {
			t.Errorf("looksNumeric(%q) = true, want false", s)
		}
	}
}
