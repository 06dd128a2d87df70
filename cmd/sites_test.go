package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spbackup/config"
	"spbackup/internal/models"
	"spbackup/pkg/utils"
)

func TestSitesCommand(t *testing.T) {
	sitesFile := filepath.Join(t.TempDir(), "sites.yaml")
	content := `sites:
  - site_url: https://contoso.sharepoint.com/sites/hr
    client_id: hr-app
    client_secret: hr-secret
  - site_url: https://contoso.sharepoint.com/sites/finance
    base_path: /sites/finance/Reports
    client_id: fin-app
    client_secret: fin-secret
    tenant_id: 9f2c0f7e-0000-4000-8000-000000000000
`
	if err := os.WriteFile(sitesFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := execute(t, &config.Config{SitesFile: sitesFile}, "sites")
	if err != nil {
		t.Fatalf("sites command failed: %v", err)
	}
	if strings.Contains(output, "hr-secret") || strings.Contains(output, "fin-secret") {
		t.Errorf("Output leaks a client secret: %s", output)
	}

	var infos []models.SiteInfo
	if err := json.Unmarshal([]byte(output), &infos); err != nil {
		t.Fatalf("Output is not a site list: %v\n%s", err, output)
	}
	want := []models.SiteInfo{
		{Name: "hr", SiteURL: "https://contoso.sharepoint.com/sites/hr", BasePath: "/sites/hr/Shared Documents", ClientID: "hr-app", AuthMode: "acs"},
		{Name: "finance", SiteURL: "https://contoso.sharepoint.com/sites/finance", BasePath: "/sites/finance/Reports", ClientID: "fin-app", TenantID: "9f2c0f7e-0000-4000-8000-000000000000", AuthMode: "azure_ad"},
	}
	if len(infos) != len(want) {
		t.Fatalf("sites = %+v", infos)
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("site %d = %+v, want %+v", i, infos[i], want[i])
		}
	}
}

func TestSitesCommandMissingFile(t *testing.T) {
	output, err := execute(t, &config.Config{SitesFile: filepath.Join(t.TempDir(), "missing.yaml")}, "sites")
	if err != nil {
		t.Fatalf("sites command returned error: %v", err)
	}
	if !strings.Contains(output, `"command": "sites"`) {
		t.Errorf("Output is not an error response: %s", output)
	}
}

func TestVerifyCommand(t *testing.T) {
	mirror := filepath.Join(t.TempDir(), "hr_20240301_020000")
	if err := os.MkdirAll(filepath.Join(mirror, "Policies"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mirror, "Policies", "leave.docx"), []byte("leave policy"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := utils.CreateTarGz(mirror, utils.ArchivePath(mirror))
	if err != nil {
		t.Fatalf("CreateTarGz() error = %v", err)
	}

	output, err := execute(t, &config.Config{}, "verify", info.ArchivePath)
	if err != nil {
		t.Fatalf("verify command failed: %v", err)
	}

	var listing models.ArchiveListing
	if err := json.Unmarshal([]byte(output), &listing); err != nil {
		t.Fatalf("Output is not a listing: %v\n%s", err, output)
	}
	if listing.RootName != "hr_20240301_020000" || listing.FileCount != 1 || listing.DirCount != 2 {
		t.Errorf("listing = %+v", listing)
	}

	output, err = execute(t, &config.Config{}, "verify", info.ArchivePath, "--summary")
	if err != nil {
		t.Fatalf("verify --summary failed: %v", err)
	}
	if strings.Contains(output, "leave.docx") {
		t.Errorf("--summary printed entries: %s", output)
	}
}

func TestVerifyCommandCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tar.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}

	output, err := execute(t, &config.Config{}, "verify", path)
	if err != nil {
		t.Fatalf("verify command returned error: %v", err)
	}
	if !strings.Contains(output, `"command": "verify"`) {
		t.Errorf("Output is not an error response: %s", output)
	}
}

func TestHistoryCommandWithoutCatalog(t *testing.T) {
	output, err := execute(t, &config.Config{}, "history")
	if err != nil {
		t.Fatalf("history command returned error: %v", err)
	}
	if !strings.Contains(output, "no catalog configured") {
		t.Errorf("Output = %s", output)
	}
}
