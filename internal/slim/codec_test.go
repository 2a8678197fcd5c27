package slim_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/woozymasta/lmsbridge/internal/slim"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"plain", []string{"player", "count", "?"}, "player count ?\r\n"},
		{"player id", []string{"00:04:20:12:34:56", "mixer", "volume", "50"}, "00:04:20:12:34:56 mixer volume 50\r\n"},
		{"space", []string{"p1", "playlist", "play", "my song"}, "p1 playlist play my%20song\r\n"},
		{"percent", []string{"100%"}, "100%25\r\n"},
		{"control char", []string{"a\tb"}, "a%09b\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(slim.EncodeCommand(tt.args...)); got != tt.want {
				t.Errorf("EncodeCommand(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestDecodeLine(t *testing.T) {
	got, err := slim.DecodeLine("  p1   status  player_name:Living%20Room \t mixer%20volume:45\r\n")
	if err != nil {
		t.Fatalf("DecodeLine returned error: %v", err)
	}

	want := []string{"p1", "status", "player_name:Living Room", "mixer volume:45"}
	if !slices.Equal(got, want) {
		t.Errorf("DecodeLine = %q, want %q", got, want)
	}
}

func TestDecodeLineKeepsPlus(t *testing.T) {
	got, err := slim.DecodeLine("p1 mixer volume +5\n")
	if err != nil {
		t.Fatalf("DecodeLine returned error: %v", err)
	}

	if got[3] != "+5" {
		t.Errorf("plus sign decoded to %q, want +5", got[3])
	}
}

func TestDecodeLineRejectsBadEscape(t *testing.T) {
	_, err := slim.DecodeLine("p1 status title:%zz\n")
	if !errors.Is(err, slim.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestDecodeEmptyLine(t *testing.T) {
	got, err := slim.DecodeLine("\r\n")
	if err != nil {
		t.Fatalf("DecodeLine returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no tokens, got %q", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	args := []string{
		"plain",
		"two words",
		"100% sure",
		"a/b?c=d&e#f",
		"ünïcödé",
		"tab\there",
		"line\r\nbreak",
		"+plus",
		"key:value:more",
		"?",
	}

	got, err := slim.DecodeLine(string(slim.EncodeCommand(args...)))
	if err != nil {
		t.Fatalf("DecodeLine returned error: %v", err)
	}

	if !slices.Equal(got, args) {
		t.Errorf("round trip = %q, want %q", got, args)
	}
}

func TestSplitField(t *testing.T) {
	tests := []struct {
		token, key, value string
	}{
		{"power:1", "power", "1"},
		{"mixer volume:45", "mixer volume", "45"},
		{"time:12:34:56", "time", "12:34:56"},
		{"bare", "bare", ""},
		{"empty:", "empty", ""},
	}

	for _, tt := range tests {
		key, value := slim.SplitField(tt.token)
		if key != tt.key || value != tt.value {
			t.Errorf("SplitField(%q) = %q, %q; want %q, %q", tt.token, key, value, tt.key, tt.value)
		}
	}
}
