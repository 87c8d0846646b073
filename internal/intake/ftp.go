package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPConfig holds the server location and credentials.
type FTPConfig struct {
	URL      string // ftp://host[:port]
	Username string
	Password string
	Timeout  time.Duration
}

// FTPStore is a RemoteStore on an FTP server. Each operation uses its own
// connection so a dropped session never outlives one call.
type FTPStore struct {
	addr string
	cfg  FTPConfig
}

// NewFTPStore validates cfg.URL.
func NewFTPStore(cfg FTPConfig) (*FTPStore, error) {
	addr, err := ftpAddr(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Username == "" {
		cfg.Username = "anonymous"
	}
	return &FTPStore{addr: addr, cfg: cfg}, nil
}

// Addr returns host:port.
func (s *FTPStore) Addr() string { return s.addr }

func ftpAddr(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("ftp url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "ftp://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid ftp url: %w", err)
	}
	if u.Scheme != "ftp" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("ftp url %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		port = "21"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func (s *FTPStore) with(ctx context.Context, fn func(c *ftp.ServerConn) error) error {
	c, err := ftp.Dial(s.addr, ftp.DialWithTimeout(s.cfg.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.addr, err)
	}
	defer func() { _ = c.Quit() }()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return fmt.Errorf("login %s: %w", s.addr, err)
	}
	return fn(c)
}

func (s *FTPStore) List(ctx context.Context, dir string) ([]RemoteEntry, error) {
	var out []RemoteEntry
	err := s.with(ctx, func(c *ftp.ServerConn) error {
		entries, err := c.List(dir)
		if err != nil {
			return fmt.Errorf("list %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.Type == ftp.EntryTypeLink {
				continue
			}
			out = append(out, RemoteEntry{
				Name: e.Name,
				Dir:  e.Type == ftp.EntryTypeFolder,
				Size: int64(e.Size), //nolint:gosec // G115: file sizes fit int64
			})
		}
		return nil
	})
	return out, err
}

func (s *FTPStore) Download(ctx context.Context, remotePath string, w io.Writer) error {
	return s.with(ctx, func(c *ftp.ServerConn) error {
		r, err := c.Retr(remotePath)
		if err != nil {
			return fmt.Errorf("retr %s: %w", remotePath, err)
		}
		defer func() { _ = r.Close() }()
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("read %s: %w", remotePath, err)
		}
		return nil
	})
}

func (s *FTPStore) Delete(ctx context.Context, remotePath string) error {
	return s.with(ctx, func(c *ftp.ServerConn) error {
		if err := c.Delete(remotePath); err != nil {
			return fmt.Errorf("delete %s: %w", remotePath, err)
		}
		return nil
	})
}

func (s *FTPStore) Upload(ctx context.Context, remotePath string, r io.Reader) error {
	return s.with(ctx, func(c *ftp.ServerConn) error {
		if err := c.Stor(remotePath, r); err != nil {
			return fmt.Errorf("stor %s: %w", remotePath, err)
		}
		return nil
	})
}

func (s *FTPStore) MakeDir(ctx context.Context, remotePath string) error {
	return s.with(ctx, func(c *ftp.ServerConn) error {
		if err := c.MakeDir(remotePath); err != nil {
			return fmt.Errorf("mkdir %s: %w", remotePath, err)
		}
		return nil
	})
}
