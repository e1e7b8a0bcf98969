// Package statestore keeps the artifacts needed to suspend a collector session and pick it
// up again later, everything lives as plain files under a single directory.
package statestore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNoStoragePath is returned by every operation of a FileStore without a directory.
var ErrNoStoragePath = errors.New("no temp storage path defined")

const resumeMarkerFile = "bank-statement.txt"

// SavedCookie is the persisted form of a single cookie.
type SavedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	HostOnly bool      `json:"host_only,omitempty"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

type FileStore struct {
	path string
}

func NewFileStore(path string) FileStore {
	return FileStore{path: path}
}

func (s FileStore) Path() string {
	return s.path
}

func (s FileStore) file(name string) (string, error) {
	if s.path == "" {
		return "", ErrNoStoragePath
	}
	return filepath.Join(s.path, name), nil
}

func (s FileStore) write(name string, contents []byte) error {
	path, err := s.file(name)
	if err != nil {
		return err
	}
	err = os.MkdirAll(s.path, 0700)
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0600)
}

func (s FileStore) read(name string) ([]byte, bool, error) {
	path, err := s.file(name)
	if err != nil {
		return nil, false, err
	}
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return contents, true, nil
}

func (s FileStore) remove(name string) error {
	path, err := s.file(name)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func cookiesFile(id string) string {
	return fmt.Sprintf("%s-cookies.txt", id)
}

func dataFile(id string) string {
	return fmt.Sprintf("%s-data.txt", id)
}

// SaveCookies writes one json record per line to <path>/<id>-cookies.txt.
func (s FileStore) SaveCookies(id string, cookies []SavedCookie) error {
	var buff bytes.Buffer
	encoder := json.NewEncoder(&buff)
	for _, c := range cookies {
		err := encoder.Encode(c)
		if err != nil {
			return fmt.Errorf("encode cookie %s: %w", c.Name, err)
		}
	}
	return s.write(cookiesFile(id), buff.Bytes())
}

// LoadCookies reads back what SaveCookies wrote, the boolean is false if nothing was saved under id.
func (s FileStore) LoadCookies(id string) ([]SavedCookie, bool, error) {
	contents, ok, err := s.read(cookiesFile(id))
	if err != nil || !ok {
		return nil, ok, err
	}

	var cookies []SavedCookie
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c SavedCookie
		err := json.Unmarshal([]byte(line), &c)
		if err != nil {
			return nil, true, fmt.Errorf("decode cookie line: %w", err)
		}
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, true, err
	}
	return cookies, true, nil
}

func (s FileStore) SaveData(id string, data []byte) error {
	return s.write(dataFile(id), data)
}

func (s FileStore) LoadData(id string) ([]byte, bool, error) {
	return s.read(dataFile(id))
}

// Remove deletes both artifacts saved under id, missing files are ignored.
func (s FileStore) Remove(id string) error {
	return errors.Join(
		s.remove(cookiesFile(id)),
		s.remove(dataFile(id)),
	)
}

// SaveResumePoint records the account a suspended run should continue from.
// There is only a single slot, saving overwrites any previous resume point.
func (s FileStore) SaveResumePoint(accountID int64) error {
	return s.write(resumeMarkerFile, []byte(strconv.FormatInt(accountID, 10)))
}

// ResumePoint returns the saved account id, the boolean is false if there is none.
func (s FileStore) ResumePoint() (int64, bool, error) {
	contents, ok, err := s.read(resumeMarkerFile)
	if err != nil || !ok {
		return 0, ok, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(contents)), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid resume point: %w", err)
	}
	return id, true, nil
}

func (s FileStore) ClearResumePoint() error {
	return s.remove(resumeMarkerFile)
}
