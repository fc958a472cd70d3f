package httpclient

import "testing"

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		deny    bool
		wantErr bool
	}{
		{name: "valid https", url: "https://example.com/a", deny: true, wantErr: false},
		{name: "bad scheme", url: "ftp://example.com/a", deny: true, wantErr: true},
		{name: "no host", url: "https:///a", deny: true, wantErr: true},
		{name: "private ip literal", url: "http://127.0.0.1/a", deny: true, wantErr: true},
		{name: "private ip allowed when deny off", url: "http://127.0.0.1/a", deny: false, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url, tt.deny)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q, %v) error = %v, wantErr %v", tt.url, tt.deny, err, tt.wantErr)
			}
		})
	}
}
