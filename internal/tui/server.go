package tui

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash/fnv"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	gossh "golang.org/x/crypto/ssh"
)

// ServerConfig configures the operator console SSH listener.
type ServerConfig struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysFile string
	// Password is the admin code; empty disables password login.
	Password string
}

// NewSSHServer serves the console over SSH. Each session gets its own
// AppModel bound to svc with the session's user filled in.
func NewSSHServer(cfg ServerConfig, svc Services) (*ssh.Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("ssh console address is required")
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Addr),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithMiddleware(
			bm.Middleware(sessionHandler(svc)),
			activeterm.Middleware(),
			logging.Middleware(),
		),
	}

	auth := 0
	if cfg.AuthorizedKeysFile != "" {
		keys, err := LoadAuthorizedKeys(cfg.AuthorizedKeysFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, wish.WithPublicKeyAuth(publicKeyHandler(keys)))
		auth++
	}
	if cfg.Password != "" {
		opts = append(opts, wish.WithPasswordAuth(passwordHandler(cfg.Password)))
		auth++
	}
	if auth == 0 {
		return nil, errors.New("ssh console needs SSH_AUTHORIZED_KEYS or ADMIN_CODE")
	}

	return wish.NewServer(opts...)
}

// LoadAuthorizedKeys parses an OpenSSH authorized_keys file.
func LoadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	var keys []ssh.PublicKey
	for len(bytes.TrimSpace(data)) > 0 {
		key, _, _, rest, err := gossh.ParseAuthorizedKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse authorized keys %s: %w", path, err)
		}
		keys = append(keys, key)
		data = rest
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no keys in %s", path)
	}
	return keys, nil
}

func publicKeyHandler(allowed []ssh.PublicKey) ssh.PublicKeyHandler {
	return func(_ ssh.Context, key ssh.PublicKey) bool {
		for _, k := range allowed {
			if ssh.KeysEqual(k, key) {
				return true
			}
		}
		return false
	}
}

func passwordHandler(code string) ssh.PasswordHandler {
	return func(_ ssh.Context, password string) bool {
		return subtle.ConstantTimeCompare([]byte(password), []byte(code)) == 1
	}
}

func sessionHandler(svc Services) bm.Handler {
	return func(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
		m := NewAppModel(SessionServices(svc, sess.User()))
		if pty, _, ok := sess.Pty(); ok {
			m.SetSize(pty.Window.Width, pty.Window.Height)
		}
		return m, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

// SessionServices binds svc to an SSH user with a stable synthetic ID.
func SessionServices(svc Services, user string) Services {
	h := fnv.New32a()
	_, _ = h.Write([]byte(user))
	svc.UserID = int64(h.Sum32()%1_000_000) + 1
	svc.Username = user
	return svc
}
