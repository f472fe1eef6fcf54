package tui

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gossh "golang.org/x/crypto/ssh"
)

func writeAuthorizedKeys(t *testing.T, n int) (string, []gossh.PublicKey) {
	t.Helper()
	var (
		buf  []byte
		keys []gossh.PublicKey
	)
	for i := 0; i < n; i++ {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		key, err := gossh.NewPublicKey(pub)
		if err != nil {
			t.Fatalf("ssh key: %v", err)
		}
		keys = append(keys, key)
		buf = append(buf, gossh.MarshalAuthorizedKey(key)...)
	}
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("write keys: %v", err)
	}
	return path, keys
}

func TestLoadAuthorizedKeys(t *testing.T) {
	path, want := writeAuthorizedKeys(t, 2)

	keys, err := LoadAuthorizedKeys(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}

	allow := publicKeyHandler(keys)
	if !allow(nil, want[1]) {
		t.Fatal("expected listed key to be accepted")
	}
	_, other := writeAuthorizedKeys(t, 1)
	if allow(nil, other[0]) {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadAuthorizedKeysErrors(t *testing.T) {
	if _, err := LoadAuthorizedKeys(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAuthorizedKeys(empty); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestPasswordHandler(t *testing.T) {
	check := passwordHandler("s3cret")
	if !check(nil, "s3cret") || check(nil, "S3CRET") || check(nil, "") {
		t.Fatal("password must match exactly")
	}
}

func TestNewSSHServerRequiresAuth(t *testing.T) {
	_, err := NewSSHServer(ServerConfig{
		Addr:        "127.0.0.1:0",
		HostKeyPath: filepath.Join(t.TempDir(), "host_ed25519"),
	}, testServices())
	if err == nil || !strings.Contains(err.Error(), "ADMIN_CODE") {
		t.Fatalf("expected auth configuration error, got %v", err)
	}

	if _, err := NewSSHServer(ServerConfig{Password: "x"}, testServices()); err == nil {
		t.Fatal("expected address error")
	}
}

func TestNewSSHServer(t *testing.T) {
	keysPath, _ := writeAuthorizedKeys(t, 1)
	srv, err := NewSSHServer(ServerConfig{
		Addr:               "127.0.0.1:0",
		HostKeyPath:        filepath.Join(t.TempDir(), "host_ed25519"),
		AuthorizedKeysFile: keysPath,
		Password:           "s3cret",
	}, testServices())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if srv.Addr != "127.0.0.1:0" {
		t.Fatalf("unexpected addr %s", srv.Addr)
	}
	if srv.PasswordHandler == nil || srv.PublicKeyHandler == nil {
		t.Fatal("expected both auth handlers installed")
	}
}

func TestSessionServices(t *testing.T) {
	a := SessionServices(testServices(), "alice")
	b := SessionServices(testServices(), "alice")
	c := SessionServices(testServices(), "bob")
	if a.UserID != b.UserID || a.UserID == c.UserID {
		t.Fatalf("expected stable distinct ids, got %d %d %d", a.UserID, b.UserID, c.UserID)
	}
	if a.Username != "alice" || a.ChatID() >= SSHChatIDOffset {
		t.Fatalf("unexpected session services %+v", a)
	}
}
