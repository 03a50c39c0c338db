package objectstore

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
)

// AuthType selects how RemoteAuth authenticates against a remote.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeBasic AuthType = "basic"
)

// RemoteAuth holds the credentials the mirror and backup tools use to
// clone/fetch from a remote stores host.
type RemoteAuth struct {
	Type       AuthType
	Token      string
	KeyPath    string
	Passphrase string
	Username   string
	Password   string
}

// Method converts RemoteAuth into go-git's transport.AuthMethod.
func (auth *RemoteAuth) Method() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case "", AuthTypeNone:
		return nil, nil

	case AuthTypeToken:
		return &http.BasicAuth{Username: "git", Password: auth.Token}, nil

	case AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, _ := os.UserHomeDir()
			keyPath = home + "/.ssh/id_rsa"
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)

	case AuthTypeBasic:
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil

	default:
		return nil, fmt.Errorf("objectstore: unknown auth type: %s", auth.Type)
	}
}

// CloneBare clones url as a new bare repository at dir.
func CloneBare(dir, url string, auth *RemoteAuth) (*Persistence, error) {
	method, err := auth.Method()
	if err != nil {
		return nil, fmt.Errorf("objectstore: configure auth: %w", err)
	}

	repo, err := git.PlainClone(dir, true, &git.CloneOptions{URL: url, Auth: method})
	if err != nil {
		return nil, fmt.Errorf("objectstore: clone %s: %w", url, err)
	}
	return &Persistence{repo: repo}, nil
}

// Fetch fetches all refs from the named remote (defaulting to "origin")
// without merging, the operation the mirror tool uses to refresh a store
// it has already cloned.
func (p *Persistence) Fetch(remoteName string, auth *RemoteAuth) error {
	if remoteName == "" {
		remoteName = "origin"
	}

	method, err := auth.Method()
	if err != nil {
		return fmt.Errorf("objectstore: configure auth: %w", err)
	}

	err = p.repo.Fetch(&git.FetchOptions{RemoteName: remoteName, Auth: method})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return fmt.Errorf("objectstore: fetch from %s: %w", remoteName, err)
	}
	return nil
}

// AddRemote registers a named remote so a subsequent Fetch can target it.
func (p *Persistence) AddRemote(name, url string) error {
	_, err := p.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	if err != nil {
		return fmt.Errorf("objectstore: add remote %s: %w", name, err)
	}
	return nil
}
