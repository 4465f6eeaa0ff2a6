package shellquote

import "testing"

func TestArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tracks", "tracks"},
		{"", "''"},
		{"rating >= 8", "'rating >= 8'"},
		{"title ~ love", "'title ~ love'"},
		{"genre !in Pop", "'genre !in Pop'"},
		{"Don't Stop Me Now", `'Don'\''t Stop Me Now'`},
		{"year=1975", "year=1975"},
		{"title regex ^A*", "'title regex ^A*'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Arg(tt.in); got != tt.want {
				t.Errorf("Arg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCommand(t *testing.T) {
	got := Command("query", "tracks", "in_playlist = Road Trip")
	want := "crate query tracks 'in_playlist = Road Trip'"
	if got != want {
		t.Errorf("Command() = %q, want %q", got, want)
	}
	if got := Command("last"); got != "crate last" {
		t.Errorf("Command(last) = %q", got)
	}
}
