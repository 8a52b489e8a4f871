package repofake

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/wattrack/go-auth-client/tokenstore"
)

var _ tokenstore.Repo = (*FakeTokenStore)(nil)

// FakeTokenStore is an in-memory token store for tests. Failing can be
// toggled to make every operation return a *StorageError.
type FakeTokenStore struct {
	token   string
	present bool
	failing bool
	lock    sync.Mutex
}

func NewFakeTokenStore() *FakeTokenStore {
	return &FakeTokenStore{}
}

// SetFailing makes subsequent operations fail with a *StorageError.
func (ts *FakeTokenStore) SetFailing(failing bool) {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	ts.failing = failing
}

func (ts *FakeTokenStore) Save(token string) error {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	if ts.failing {
		return &tokenstore.StorageError{Op: "save", Cause: errors.New("storage unavailable")}
	}
	ts.token = token
	ts.present = true
	return nil
}

func (ts *FakeTokenStore) Get() (string, bool, error) {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	if ts.failing {
		return "", false, &tokenstore.StorageError{Op: "get", Cause: errors.New("storage unavailable")}
	}
	if !ts.present {
		return "", false, nil
	}
	return ts.token, true, nil
}

func (ts *FakeTokenStore) Remove() error {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	if ts.failing {
		return &tokenstore.StorageError{Op: "remove", Cause: errors.New("storage unavailable")}
	}
	ts.token = ""
	ts.present = false
	return nil
}
