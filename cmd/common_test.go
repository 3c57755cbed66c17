package cmd

import "testing"

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 bytes"},
		{1023, "1023 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestValueText(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"<value>dark</value>", "dark"},
		{"  <value>a &amp; b</value>\n", "a & b"},
		{"plain &lt;text&gt;", "plain <text>"},
		{"<value></value>", ""},
		{"<a>1</a><b>2</b>", "<a>1</a><b>2</b>"},
		{"<value><w>800</w></value>", "<value><w>800</w></value>"},
	}

	for _, tt := range tests {
		got, err := valueText(tt.payload)
		if err != nil {
			t.Fatalf("valueText(%q) failed: %v", tt.payload, err)
		}
		if got != tt.want {
			t.Errorf("valueText(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}

	if _, err := valueText("<value>unclosed"); err == nil {
		t.Error("expected error for malformed payload")
	}
}
