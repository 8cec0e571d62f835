package settings

import "testing"

func TestIsValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{KeyFairnessBasePriority, true},
		{KeyQueueTimeoutSecs, true},
		{"not_a_real_key", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidKey(tt.key); got != tt.want {
			t.Errorf("IsValidKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestDefaultsCoverAllKeys(t *testing.T) {
	for _, k := range allKeys {
		if _, ok := Defaults[k]; !ok {
			t.Errorf("key %q has no default value", k)
		}
	}
}
