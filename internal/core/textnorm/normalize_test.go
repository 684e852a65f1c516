package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "punctuation and spacing", in: "Hello,  World!!", want: "hello world"},
		{name: "empty", in: "", want: ""},
		{name: "only punctuation", in: "?!...", want: ""},
		{name: "tabs and newlines", in: "  Account\tNumber:\n\n1234  ", want: "account number 1234"},
		{name: "currency symbol removed", in: "Total $50.00", want: "total 5000"},
		{name: "unicode punctuation", in: "«Quoted» — text…", want: "quoted text"},
		{name: "non ascii letters kept", in: "Straße Ärger", want: "straße ärger"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Hello,  World!!",
		"Invoice Number: 1234 Date: 15 December 2023 Item: Design $50",
		"ANY STATE DRIVER LICENSE License No. P99999999 Expires 00-00-00",
		" non breaking　spaces ",
		"mixed_under-score/slash\\back",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}
