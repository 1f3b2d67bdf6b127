package config

import (
	"strings"
	"testing"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"orders", "orders", true},
		{"orders", "orders-v2", false},
		{"/orders.*/", "orders-v2", true},
		{"/orders/", "my-orders", false},
		{"/", "/", true},
		{"//", "", true},
		{"/a|b/", "a", true},
		{"/a|b/", "ab", false},
	}

	for _, tt := range tests {
		m, err := parsePattern(tt.pattern)
		if err != nil {
			t.Fatalf("parsePattern(%q) failed: %v", tt.pattern, err)
		}
		if got := m.Match(tt.input); got != tt.want {
			t.Errorf("parsePattern(%q).Match(%q) = %v, want %v", tt.pattern, tt.input, got, tt.want)
		}
	}
}

func TestAdmissionLimits_FirstMatchWins(t *testing.T) {
	limits, err := NewAdmissionLimits([]AdmissionRule{
		{Service: "orders", Method: "/orders.Store/Create", MaxActive: 4},
		{Service: "orders", Method: "/.*/", MaxActive: 16},
		{Service: "/.*/", Method: "/orders.Store/Create", MaxActive: 99},
	}, 50)
	if err != nil {
		t.Fatalf("NewAdmissionLimits failed: %v", err)
	}

	tests := []struct {
		service string
		method  string
		want    int64
	}{
		{"orders", "/orders.Store/Create", 4},
		{"orders", "/orders.Store/Get", 16},
		{"billing", "/orders.Store/Create", 99},
		{"billing", "/billing.Ledger/Get", 50},
	}
	for _, tt := range tests {
		if got := limits.MaxActive(tt.service, tt.method); got != tt.want {
			t.Errorf("MaxActive(%q, %q) = %d, want %d", tt.service, tt.method, got, tt.want)
		}
	}
}

func TestAdmissionLimits_ZeroRuleDisablesLimit(t *testing.T) {
	limits, err := NewAdmissionLimits([]AdmissionRule{
		{Service: "health", Method: "/.*/", MaxActive: 0},
	}, 10)
	if err != nil {
		t.Fatalf("NewAdmissionLimits failed: %v", err)
	}
	if got := limits.MaxActive("health", "/grpc.health.v1.Health/Check"); got != 0 {
		t.Errorf("MaxActive = %d, want 0", got)
	}
}

func TestAdmissionLimits_Nil(t *testing.T) {
	var limits *AdmissionLimits
	if got := limits.MaxActive("orders", "/orders.Store/Get"); got != 0 {
		t.Errorf("nil limits MaxActive = %d, want 0", got)
	}
}

func TestNewAdmissionLimits_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rule    AdmissionRule
		wantErr string
	}{
		{"bad service", AdmissionRule{Service: "/(/", Method: "m"}, "invalid service pattern"},
		{"bad method", AdmissionRule{Service: "s", Method: "/[a-/"}, "invalid method pattern"},
		{"group escape", AdmissionRule{Service: "s", Method: "/a)|(?:.*/"}, "invalid method pattern"},
		{"negative limit", AdmissionRule{Service: "s", Method: "m", MaxActive: -2}, "invalid max_active"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdmissionLimits([]AdmissionRule{{Service: "ok", Method: "ok"}, tt.rule}, 0)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) || !strings.Contains(err.Error(), "rule 1") {
				t.Errorf("error = %v, want %q for rule 1", err, tt.wantErr)
			}
		})
	}
}
