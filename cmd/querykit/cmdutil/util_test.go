package cmdutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/marmos91/querykit/internal/cli/output"
	"github.com/marmos91/querykit/pkg/api/auth"
	"github.com/marmos91/querykit/pkg/config"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single item", "id", []string{"id"}},
		{"multiple items", "id,title,likes", []string{"id", "title", "likes"}},
		{"items with spaces", "id, title , likes", []string{"id", "title", "likes"}},
		{"empty items filtered out", "id,,title,", []string{"id", "title"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCommaSeparatedList(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("ParseCommaSeparatedList(%q) = %v, want %v", tt.input, result, tt.expected)
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("ParseCommaSeparatedList(%q)[%d] = %q, want %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestParseFilters(t *testing.T) {
	filters, err := ParseFilters([]string{"community_id=7", "status=open", "note=a=b"})
	if err != nil {
		t.Fatalf("ParseFilters failed: %v", err)
	}
	if filters["community_id"] != "7" || filters["status"] != "open" || filters["note"] != "a=b" {
		t.Errorf("unexpected filters: %v", filters)
	}

	for _, bad := range []string{"status", "=open"} {
		if _, err := ParseFilters([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestPrintOutput(t *testing.T) {
	t.Cleanup(func() { Flags.Output = "" })
	table := output.KeyValues{{"Size", "3"}}

	var buf bytes.Buffer
	Flags.Output = "table"
	if err := PrintOutput(&buf, nil, true, "No rows.", table); err != nil {
		t.Fatalf("PrintOutput failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No rows." {
		t.Errorf("expected empty message, got %q", buf.String())
	}

	buf.Reset()
	Flags.Output = "json"
	if err := PrintOutput(&buf, map[string]int{"size": 3}, false, "", table); err != nil {
		t.Fatalf("PrintOutput failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"size": 3`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}

	Flags.Output = "xml"
	if err := PrintOutput(&buf, nil, false, "", table); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestMintToken(t *testing.T) {
	t.Setenv("QUERYKIT_API_JWT_SECRET", "")
	cfg := config.GetDefaultConfig()

	if _, err := MintToken(cfg, auth.RoleServiceRole); err == nil {
		t.Fatal("expected error without a JWT secret")
	}

	cfg.API.JWT.Secret = "cli-secret-key-for-testing-minimum-32-chars"
	token, err := MintToken(cfg, auth.RoleServiceRole)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}

	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: cfg.API.JWT.Secret})
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("minted token does not validate: %v", err)
	}
	if !claims.IsServiceRole() {
		t.Errorf("expected service_role, got %q", claims.Role)
	}
}
