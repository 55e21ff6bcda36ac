package evidence

import (
	"os"
	"path/filepath"
	"testing"
)

func writeKeypair(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	private := filepath.Join(dir, "warden.key")
	public := filepath.Join(dir, "warden.pub")
	if err := GenerateKeys(private, public); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	return private, public
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evidence.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestGenerateKeysFileModes(t *testing.T) {
	private, public := writeKeypair(t)

	info, err := os.Stat(private)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("private key mode = %o, want 600", info.Mode().Perm())
	}
	if _, err := os.Stat(public); err != nil {
		t.Errorf("stat public key: %v", err)
	}
}

func TestSignVerifyRoundtrip(t *testing.T) {
	private, public := writeKeypair(t)
	artifact := writeArtifact(t, `{"passed":true}`)

	envelope, err := Sign(artifact, private)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := Verify(artifact, envelope, public)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("valid signature rejected")
	}

	parsed, err := ReadEnvelope(envelope)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if parsed.Header.SigType != "ed25519" || parsed.Header.SchemaVersion != "1.0" {
		t.Errorf("header = %+v", parsed.Header)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	private, public := writeKeypair(t)
	artifact := writeArtifact(t, `{"passed":true}`)

	envelope, err := Sign(artifact, private)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := os.WriteFile(artifact, []byte(`{"passed":false}`), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	ok, err := Verify(artifact, envelope, public)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("tampered artifact verified")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	private, _ := writeKeypair(t)
	_, otherPublic := writeKeypair(t)
	artifact := writeArtifact(t, `{"passed":true}`)

	envelope, err := Sign(artifact, private)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := Verify(artifact, envelope, otherPublic)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("signature verified with the wrong public key")
	}
}

func TestReadEnvelopeMalformed(t *testing.T) {
	cases := map[string]string{
		"missing header":   "deadbeef",
		"bad header json":  "not-json\nabcd",
		"wrong sig type":   `{"schema_version":"1.0","sig_type":"rsa"}` + "\nabcd",
		"non-hex body":     `{"schema_version":"1.0","sig_type":"ed25519"}` + "\nzzzz",
		"short signature":  `{"schema_version":"1.0","sig_type":"ed25519"}` + "\nabcd",
	}
	for name, raw := range cases {
		if _, err := ReadEnvelope([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSignRejectsWrongKeyType(t *testing.T) {
	private, public := writeKeypair(t)
	artifact := writeArtifact(t, `{}`)

	// Public key presented where a private key is required.
	if _, err := Sign(artifact, public); err == nil {
		t.Error("expected error signing with a public key file")
	}
	if _, err := Verify(artifact, []byte("x\ny"), private); err == nil {
		t.Error("expected error verifying with a private key file")
	}
}
