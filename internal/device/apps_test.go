package device

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCatalog_Lookup(t *testing.T) {
	c := DefaultCatalog()
	pkg, ok := c.Lookup("Settings")
	if !ok || pkg != "com.android.settings" {
		t.Errorf("unexpected lookup result: %q %v", pkg, ok)
	}
	if pkg, _ := c.Lookup("settings"); pkg != "com.android.settings" {
		t.Errorf("lookup should be case-insensitive, got %q", pkg)
	}
	if _, ok := c.Lookup("NoSuchApp"); ok {
		t.Error("unexpected hit for unknown app")
	}
}

func TestCatalog_Resolve(t *testing.T) {
	c := DefaultCatalog()
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Clock", "com.android.deskclock", true},
		{"com.example.custom", "com.example.custom", true},
		{"Unknown App", "", false},
		{"rm -rf /", "", false},
		{"com.example.app; reboot", "", false},
	}
	for _, tc := range cases {
		got, err := c.Resolve(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("Resolve(%q): err=%v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCatalog_LoadOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "apps.yaml")
	os.WriteFile(path, []byte(`
MyBank: com.example.bank
Clock: com.vendor.clock
`), 0644)

	c := DefaultCatalog()
	if err := c.LoadOverrides(path); err != nil {
		t.Fatalf("load error: %v", err)
	}
	if pkg, _ := c.Lookup("MyBank"); pkg != "com.example.bank" {
		t.Errorf("override not applied: %q", pkg)
	}
	if pkg, _ := c.Lookup("Clock"); pkg != "com.vendor.clock" {
		t.Errorf("override should replace the built-in entry, got %q", pkg)
	}
}

func TestCatalog_LoadOverridesRejectsBadPackage(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "apps.yaml")
	os.WriteFile(path, []byte(`
Good: com.example.good
Evil: "com.example.app; rm -rf /"
`), 0644)

	c := DefaultCatalog()
	if err := c.LoadOverrides(path); err == nil {
		t.Fatal("expected rejection of invalid package id")
	}
	if _, ok := c.Lookup("Good"); ok {
		t.Error("a rejected catalog must not be partially applied")
	}
}

func TestValidateDeviceID(t *testing.T) {
	valid := []string{"", "emulator-5554", "R38M20BDXHE", "192.168.1.20:5555"}
	for _, id := range valid {
		if err := ValidateDeviceID(id); err != nil {
			t.Errorf("ValidateDeviceID(%q): unexpected error %v", id, err)
		}
	}
	invalid := []string{"serial; reboot", "id with spaces", "$(whoami)", "a|b"}
	for _, id := range invalid {
		if err := ValidateDeviceID(id); err == nil {
			t.Errorf("ValidateDeviceID(%q): expected rejection", id)
		}
	}
}
