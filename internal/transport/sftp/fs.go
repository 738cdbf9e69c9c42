// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package sftp

import (
	"io"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// remoteFS is the subset of SFTP operations used while fetching files.
type remoteFS interface {
	ReadDir(dir string) ([]os.FileInfo, error)
	Stat(name string) (os.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)
	Mkdir(dir string) error
	Rename(oldname, newname string) error
	Remove(name string) error
	Close() error
}

var _ remoteFS = &clientFS{}

// clientFS adapts an sftp.Client to remoteFS, closing the ssh connection with it.
type clientFS struct {
	client *sftp.Client
	conn   *ssh.Client
}

func (c *clientFS) ReadDir(dir string) ([]os.FileInfo, error) {
	return c.client.ReadDir(dir)
}

func (c *clientFS) Stat(name string) (os.FileInfo, error) {
	return c.client.Stat(name)
}

func (c *clientFS) Open(name string) (io.ReadCloser, error) {
	return c.client.Open(name)
}

func (c *clientFS) Create(name string) (io.WriteCloser, error) {
	return c.client.Create(name)
}

func (c *clientFS) Mkdir(dir string) error {
	return c.client.Mkdir(dir)
}

func (c *clientFS) Rename(oldname, newname string) error {
	return c.client.Rename(oldname, newname)
}

func (c *clientFS) Remove(name string) error {
	return c.client.Remove(name)
}

func (c *clientFS) Close() error {
	err := c.client.Close()
	if c.conn != nil {
		if connErr := c.conn.Close(); err == nil {
			err = connErr
		}
	}
	return err
}
