// Package deploy pushes site content to a hosting account over SFTP,
// authenticating with the account's own credentials. Every operation
// runs under a hard wall-clock timeout; on expiry the underlying
// connection is force-closed so a stalled remote cannot leak sessions.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const DefaultDir = "public_html"

type Credentials struct {
	Username string
	Password string
}

// remoteFS is the slice of the SFTP session the client uses. It exists
// so the timeout discipline can be tested against a hanging fake.
type remoteFS interface {
	Stat(p string) (os.FileInfo, error)
	Create(p string) (io.WriteCloser, error)
	Mkdir(p string) error
	ReadDir(p string) ([]os.FileInfo, error)
}

type Client struct {
	Host    string
	Port    int
	Timeout time.Duration

	// connect is swapped out in tests; nil means real SFTP over SSH.
	connect func(creds Credentials) (remoteFS, io.Closer, error)
}

func NewClient(host string, port int, timeout time.Duration) *Client {
	if port == 0 {
		port = 22
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{Host: host, Port: port, Timeout: timeout}
}

// UploadFile writes content as fileName under dir (public_html when
// empty). A missing or inaccessible target directory is reported as-is,
// never retried. Overwrites an existing file.
func (c *Client) UploadFile(ctx context.Context, creds Credentials, content []byte, fileName, dir string) error {
	if dir == "" {
		dir = DefaultDir
	}
	return c.withSession(ctx, creds, "upload "+fileName, func(rfs remoteFS) error {
		fi, err := rfs.Stat(dir)
		if err != nil {
			return fmt.Errorf("target directory %s: %w", dir, err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("target %s is not a directory", dir)
		}
		return writeFile(rfs, path.Join(dir, fileName), content)
	})
}

// UploadDirectory mirrors localPath under remotePath, creating remote
// directories as needed. An already-existing remote directory counts as
// success.
func (c *Client) UploadDirectory(ctx context.Context, creds Credentials, localPath, remotePath string) error {
	return c.withSession(ctx, creds, "upload dir "+localPath, func(rfs remoteFS) error {
		return filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(localPath, p)
			if err != nil {
				return err
			}
			remote := path.Join(remotePath, filepath.ToSlash(rel))
			if d.IsDir() {
				return ensureDir(rfs, remote)
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			return writeFile(rfs, remote, data)
		})
	})
}

// FileExists stats remotePath without touching it.
func (c *Client) FileExists(ctx context.Context, creds Credentials, remotePath string) (bool, error) {
	var exists bool
	err := c.withSession(ctx, creds, "stat "+remotePath, func(rfs remoteFS) error {
		if _, err := rfs.Stat(remotePath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// TestConnection opens a session and lists the account root.
func (c *Client) TestConnection(ctx context.Context, creds Credentials) error {
	return c.withSession(ctx, creds, "test connection", func(rfs remoteFS) error {
		_, err := rfs.ReadDir(".")
		return err
	})
}

func writeFile(rfs remoteFS, remote string, content []byte) error {
	f, err := rfs.Create(remote)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ensureDir is idempotent: the remote reporting "already exists" is
// success as long as the path really is a directory.
func ensureDir(rfs remoteFS, remote string) error {
	err := rfs.Mkdir(remote)
	if err == nil {
		return nil
	}
	if fi, serr := rfs.Stat(remote); serr == nil && fi.IsDir() {
		return nil
	}
	return err
}

// withSession dials, runs fn, and guarantees the session is closed on
// every exit path. fn runs in its own goroutine so the timeout can fire
// even when the remote accepts the connection and then hangs.
func (c *Client) withSession(ctx context.Context, creds Credentials, op string, fn func(remoteFS) error) error {
	connect := c.connect
	if connect == nil {
		connect = c.sftpConnect
	}
	rfs, closer, err := connect(creds)
	if err != nil {
		return fmt.Errorf("deploy connect: %w", err)
	}
	defer closer.Close()

	done := make(chan error, 1)
	go func() { done <- fn(rfs) }()

	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("deploy %s: %w", op, err)
		}
		return nil
	case <-timer.C:
		closer.Close()
		return fmt.Errorf("deploy %s: timeout after %s", op, c.Timeout)
	case <-ctx.Done():
		closer.Close()
		return fmt.Errorf("deploy %s: %w", op, ctx.Err())
	}
}

func (c *Client) sftpConnect(creds Credentials) (remoteFS, io.Closer, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(creds.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	cl, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open sftp: %w", err)
	}
	return sftpFS{cl}, sessionCloser{cl, conn}, nil
}

type sftpFS struct {
	cl *sftp.Client
}

func (s sftpFS) Stat(p string) (os.FileInfo, error)      { return s.cl.Stat(p) }
func (s sftpFS) Create(p string) (io.WriteCloser, error) { return s.cl.Create(p) }
func (s sftpFS) Mkdir(p string) error                    { return s.cl.Mkdir(p) }
func (s sftpFS) ReadDir(p string) ([]os.FileInfo, error) { return s.cl.ReadDir(p) }

type sessionCloser struct {
	cl   *sftp.Client
	conn *ssh.Client
}

func (s sessionCloser) Close() error {
	_ = s.cl.Close()
	return s.conn.Close()
}
