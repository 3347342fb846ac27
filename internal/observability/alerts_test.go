package observability

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestVaultAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "vault.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	if len(spec.Groups) == 0 {
		t.Fatal("expected at least one alert group")
	}

	var vaultGroup *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "vault" {
			vaultGroup = &spec.Groups[i]
			break
		}
	}
	if vaultGroup == nil {
		t.Fatal("expected a vault alert group")
	}

	wantAlerts := map[string]bool{
		"VaultAuditWriteFailures": false,
		"VaultRevealSpike":        false,
		"VaultHighErrorRate":      false,
	}
	for _, rule := range vaultGroup.Rules {
		if rule.Expr == "" {
			t.Fatalf("alert %q has an empty expression", rule.Alert)
		}
		if rule.Labels["severity"] == "" {
			t.Fatalf("alert %q has no severity label", rule.Alert)
		}
		if _, ok := wantAlerts[rule.Alert]; ok {
			wantAlerts[rule.Alert] = true
		}
	}
	for name, seen := range wantAlerts {
		if !seen {
			t.Fatalf("missing expected alert %q", name)
		}
	}
}
