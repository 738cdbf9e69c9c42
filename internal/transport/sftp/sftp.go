// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/net/proxy"

	"github.com/mia-platform/feedagg/internal/config"
	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	loggerName    = "feedagg:transport:sftp"
	historyFolder = "history"
	dialTimeout   = 2 * time.Minute
)

var (
	// ErrConnection is returned when the SFTP server or its proxy cannot be reached or refuses the login.
	ErrConnection = errors.New("sftp connection failed")
)

var _ transport.Fetcher = &Fetcher{}

// Fetcher downloads files from the SFTP server of one supplier.
type Fetcher struct {
	config *config.SFTP
	dial   func(ctx context.Context) (remoteFS, error)
}

// New returns a Fetcher connecting with cfg on every Fetch.
func New(cfg *config.SFTP) *Fetcher {
	fetcher := &Fetcher{config: cfg}
	fetcher.dial = fetcher.connect
	return fetcher
}

// Fetch implements transport.Fetcher. The locator is "dir/prefix.ext": every regular file in dir
// whose name starts with prefix is a candidate, the most recently modified one is downloaded
// and the others are moved into the history folder next to them.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (*transport.File, error) {
	fs, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer fs.Close()

	return fetchNewest(ctx, fs, locator)
}

func (f *Fetcher) connect(ctx context.Context) (remoteFS, error) {
	clientConfig, err := f.clientConfig()
	if err != nil {
		return nil, err
	}

	address := f.config.Address()
	conn, err := f.dialContext(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, address, err)
	}

	sshConn, channels, requests, err := ssh.NewClientConn(conn, address, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, address, err)
	}

	sshClient := ssh.NewClient(sshConn, channels, requests)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, address, err)
	}

	return &clientFS{client: client, conn: sshClient}, nil
}

// dialContext opens the TCP connection to address, through the SOCKS5 proxy when configured.
func (f *Fetcher) dialContext(ctx context.Context, address string) (net.Conn, error) {
	direct := &net.Dialer{Timeout: dialTimeout}
	if f.config.Proxy == nil {
		return direct.DialContext(ctx, "tcp", address)
	}

	var auth *proxy.Auth
	if f.config.Proxy.Username != "" {
		auth = &proxy.Auth{
			User:     f.config.Proxy.Username,
			Password: f.config.Proxy.Password,
		}
	}

	dialer, err := proxy.SOCKS5("tcp", f.config.Proxy.Address, auth, direct)
	if err != nil {
		return nil, err
	}

	if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
		return contextDialer.DialContext(ctx, "tcp", address)
	}
	return dialer.Dial("tcp", address)
}

func (f *Fetcher) clientConfig() (*ssh.ClientConfig, error) {
	authMethods := make([]ssh.AuthMethod, 0, 2)
	if f.config.PrivateKeyFile != "" {
		key, err := os.ReadFile(f.config.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if f.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(f.config.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // suppliers without a pinned host key
	if f.config.HostKey != "" {
		hostKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(f.config.HostKey))
		if err != nil {
			return nil, fmt.Errorf("parsing host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(hostKey)
	}

	return &ssh.ClientConfig{
		User:            f.config.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}, nil
}

func fetchNewest(ctx context.Context, fs remoteFS, locator string) (*transport.File, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	dir := path.Dir(locator)
	base := path.Base(locator)
	prefix := strings.TrimSuffix(base, path.Ext(base))

	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	candidates := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.Mode().IsRegular() && strings.HasPrefix(entry.Name(), prefix) {
			candidates = append(candidates, entry)
		}
	}

	if len(candidates) == 0 {
		log.Warn("no file matching prefix", "dir", dir, "prefix", prefix)
		return nil, fmt.Errorf("%w: no file starting with %q in %s", transport.ErrNoData, prefix, dir)
	}

	slices.SortStableFunc(candidates, func(a, b os.FileInfo) int {
		return a.ModTime().Compare(b.ModTime())
	})
	newest := candidates[len(candidates)-1]

	if older := candidates[:len(candidates)-1]; len(older) > 0 {
		historyDir := path.Join(dir, historyFolder)
		if err := ensureDir(fs, historyDir); err != nil {
			log.Warn("history folder not available, older files left in place", "dir", historyDir, "error", err)
		} else {
			for _, entry := range older {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				if err := archive(fs, path.Join(dir, entry.Name()), path.Join(historyDir, entry.Name())); err != nil {
					log.Warn("archiving file failed", "file", entry.Name(), "error", err)
					continue
				}
				log.Debug("file archived", "file", entry.Name(), "dir", historyDir)
			}
		}
	}

	content, err := download(fs, path.Join(dir, newest.Name()))
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", transport.ErrNoData, newest.Name())
	}

	log.Debug("file downloaded", "file", newest.Name(), "size", len(content), "archived", len(candidates)-1)
	return &transport.File{Name: newest.Name(), Content: content}, nil
}

func ensureDir(fs remoteFS, dir string) error {
	info, err := fs.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("%s is not a directory", dir)
	}

	return fs.Mkdir(dir)
}

// archive moves src to dst, falling back to copy and delete when the server refuses the rename.
func archive(fs remoteFS, src, dst string) error {
	if err := fs.Rename(src, dst); err == nil {
		return nil
	}

	reader, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := fs.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(writer, reader); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	return fs.Remove(src)
}

func download(fs remoteFS, name string) ([]byte, error) {
	reader, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", name, err)
	}
	return content, nil
}
