package crossref

import "testing"

func TestBareDOI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.1234/ABC.5", "10.1234/ABC.5"},
		{"  10.1/x  ", "10.1/x"},
		{"https://doi.org/10.1/x", "10.1/x"},
		{"HTTPS://DOI.ORG/10.1/x", "10.1/x"},
		{"http://dx.doi.org/10.1/x", "10.1/x"},
		{"doi.org/10.1/x", "10.1/x"},
		{"doi: 10.1/x", "10.1/x"},
		{"DOI:10.1/x", "10.1/x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BareDOI(tt.in); got != tt.want {
			t.Errorf("BareDOI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDOIURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.1/abc", "https://doi.org/10.1/abc"},
		{"https://doi.org/10.1/abc", "https://doi.org/10.1/abc"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := DOIURL(tt.in); got != tt.want {
			t.Errorf("DOIURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
