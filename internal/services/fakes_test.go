package services

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/events"
	"fincontrol/internal/log"
)

func quietLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	return log.New(cfg)
}

var cred = api.Credentials{Token: "tok", UserID: "7"}

// fakeAPI records calls and serves canned data.
type fakeAPI struct {
	mu    sync.Mutex
	txs   []core.Transaction
	tags  []core.Tag
	users []core.User

	txErr  error
	tagErr error
	err    error

	// afterListTx runs once ListTransactions has read its data.
	afterListTx func(call int32)

	txCalls  atomic.Int32
	tagCalls atomic.Int32
	calls    []string
	lastTx   core.Transaction
	lastTag  string
	lastUser api.UserInput
	attached []string
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeAPI) ListTransactions(ctx context.Context, c api.Credentials) ([]core.Transaction, error) {
	call := f.txCalls.Add(1)
	f.mu.Lock()
	err := f.txErr
	out := make([]core.Transaction, len(f.txs))
	copy(out, f.txs)
	f.mu.Unlock()
	if f.afterListTx != nil {
		f.afterListTx(call)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeAPI) addTransaction(t core.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, t)
}

func (f *fakeAPI) ListTags(ctx context.Context, c api.Credentials) ([]core.Tag, error) {
	f.tagCalls.Add(1)
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	out := make([]core.Tag, len(f.tags))
	copy(out, f.tags)
	return out, nil
}

func (f *fakeAPI) CreateTransaction(ctx context.Context, c api.Credentials, t core.Transaction) error {
	f.lastTx = t
	return f.record("CreateTransaction")
}

func (f *fakeAPI) UpdateTransaction(ctx context.Context, c api.Credentials, id string, t core.Transaction) error {
	f.lastTx = t
	return f.record("UpdateTransaction " + id)
}

func (f *fakeAPI) DeleteTransaction(ctx context.Context, c api.Credentials, id string) error {
	return f.record("DeleteTransaction " + id)
}

func (f *fakeAPI) AttachTags(ctx context.Context, c api.Credentials, txID string, tagIDs []string) error {
	f.attached = tagIDs
	return f.record("AttachTags " + txID)
}

func (f *fakeAPI) DetachTag(ctx context.Context, c api.Credentials, txID, tagID string) error {
	return f.record("DetachTag " + txID + " " + tagID)
}

func (f *fakeAPI) CreateTag(ctx context.Context, c api.Credentials, name string) error {
	f.lastTag = name
	return f.record("CreateTag")
}

func (f *fakeAPI) UpdateTag(ctx context.Context, c api.Credentials, id, name string) error {
	f.lastTag = name
	return f.record("UpdateTag " + id)
}

func (f *fakeAPI) DeleteTag(ctx context.Context, c api.Credentials, id string) error {
	return f.record("DeleteTag " + id)
}

func (f *fakeAPI) ListUsers(ctx context.Context, c api.Credentials) ([]core.User, error) {
	return f.users, f.err
}

func (f *fakeAPI) CreateUser(ctx context.Context, c api.Credentials, in api.UserInput) error {
	f.lastUser = in
	return f.record("CreateUser")
}

func (f *fakeAPI) UpdateUser(ctx context.Context, c api.Credentials, id string, in api.UserInput) error {
	f.lastUser = in
	return f.record("UpdateUser " + id)
}

func (f *fakeAPI) DeleteUser(ctx context.Context, c api.Credentials, id string) error {
	return f.record("DeleteUser " + id)
}

type fakeInvalidator struct{ users []string }

func (f *fakeInvalidator) Invalidate(userID string) { f.users = append(f.users, userID) }

type fakePublisher struct {
	events []events.ChangeEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, ev events.ChangeEvent) error {
	f.events = append(f.events, ev)
	return f.err
}
