package agent

import "testing"

func TestSniff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ua   string
		want Info
	}{
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			want: Info{Platform: "Windows", Browser: "Chrome", IsDesktop: true},
		},
		{
			name: "safari on iphone",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			want: Info{Platform: "iOS", Browser: "Safari", IsDesktop: false},
		},
		{
			name: "firefox on linux",
			ua:   "Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
			want: Info{Platform: "Linux", Browser: "Firefox", IsDesktop: true},
		},
		{
			name: "edge identifies before chrome",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.97",
			want: Info{Platform: "Windows", Browser: "Edge", IsDesktop: true},
		},
		{
			name: "chrome on android is mobile",
			ua:   "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Mobile Safari/537.36",
			want: Info{Platform: "Android", Browser: "Chrome", IsDesktop: false},
		},
		{
			name: "empty UA",
			ua:   "",
			want: Info{Platform: "Unknown", Browser: "Unknown", IsDesktop: false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sniff(tc.ua); got != tc.want {
				t.Fatalf("Sniff(%q) = %+v, want %+v", tc.ua, got, tc.want)
			}
		})
	}
}
