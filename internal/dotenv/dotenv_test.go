package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadFile on missing file: %v", err)
	}
}

func TestLoadFile_SetsUnsetKeysOnly(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "# gateway settings\n" +
		"APSARA_TEST_PLAIN=one\n" +
		"export APSARA_TEST_EXPORTED=two\n" +
		"APSARA_TEST_QUOTED='with spaces'\n" +
		"APSARA_TEST_TAKEN=file_value\n" +
		"not a pair\n" +
		"=no_key\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("APSARA_TEST_TAKEN", "env_value")
	for _, key := range []string{"APSARA_TEST_PLAIN", "APSARA_TEST_EXPORTED", "APSARA_TEST_QUOTED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	checks := map[string]string{
		"APSARA_TEST_PLAIN":    "one",
		"APSARA_TEST_EXPORTED": "two",
		"APSARA_TEST_QUOTED":   "with spaces",
		"APSARA_TEST_TAKEN":    "env_value",
	}
	for key, want := range checks {
		if got := os.Getenv(key); got != want {
			t.Fatalf("%s=%q, want %q", key, got, want)
		}
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line string
		key  string
		val  string
		ok   bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"  KEY = value  ", "KEY", "value", true},
		{`KEY="quoted value"`, "KEY", "quoted value", true},
		{"export KEY=value", "KEY", "value", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no equals sign", "", "", false},
		{"=value", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseLine(tc.line)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Fatalf("parseLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.line, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}
