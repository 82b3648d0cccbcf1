package version

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    FeedVersion
		wantErr bool
	}{
		{"1.0", FeedVersion{1, 0}, false},
		{"1.1", FeedVersion{1, 1}, false},
		{"10.23", FeedVersion{10, 23}, false},
		{"", FeedVersion{}, true},
		{"1", FeedVersion{}, true},
		{"1.0.0", FeedVersion{}, true},
		{"1.x", FeedVersion{}, true},
		{"-1.0", FeedVersion{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFeedVersionString(t *testing.T) {
	if got := MustParse("10.23").String(); got != "10.23" {
		t.Errorf("String() = %q, want %q", got, "10.23")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse(\"bogus\") should panic")
		}
	}()
	MustParse("bogus")
}

func TestCompatible(t *testing.T) {
	if !MustParse("1.0").Compatible(MustParse("1.4")) {
		t.Error("1.0 should be compatible with 1.4")
	}
	if MustParse("1.0").Compatible(MustParse("2.0")) {
		t.Error("1.0 should NOT be compatible with 2.0")
	}
}

func TestCompatibleWith(t *testing.T) {
	if !CompatibleWith("1.7") {
		t.Error("CompatibleWith(1.7) = false, want true")
	}
	if CompatibleWith("2.0") {
		t.Error("CompatibleWith(2.0) = true, want false")
	}
	if CompatibleWith("") {
		t.Error("CompatibleWith(\"\") = true, want false")
	}
}

func TestSubprotocol(t *testing.T) {
	if got := Subprotocol(1); got != "telemon/1" {
		t.Errorf("Subprotocol(1) = %q, want %q", got, "telemon/1")
	}
}

func TestMajorFromSubprotocol(t *testing.T) {
	tests := []struct {
		input   string
		want    uint16
		wantErr bool
	}{
		{"telemon/1", 1, false},
		{"telemon/3", 3, false},
		{"telemon/", 0, true},
		{"telemon/abc", 0, true},
		{"chat", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := MajorFromSubprotocol(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MajorFromSubprotocol(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MajorFromSubprotocol(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestSupportedSubprotocols(t *testing.T) {
	protos := SupportedSubprotocols()
	if len(protos) != 1 || protos[0] != "telemon/1" {
		t.Errorf("SupportedSubprotocols() = %v, want [telemon/1]", protos)
	}
}
